package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActivityAssetUploaded      = "asset.uploaded"
	ActivityAssetStatusChanged = "asset.status_changed"
)

// Activity is an append-only audit row.
type Activity struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"actor_id"`
	AssetID     *uuid.UUID        `gorm:"type:uuid;index" json:"asset_id"`
	Type        string            `gorm:"type:text;not null;index" json:"type"`
	Description string            `gorm:"type:text" json:"description"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb" swaggertype:"object" json:"payload"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`

	// Activity <-> Asset
	Asset *Asset `gorm:"foreignKey:AssetID;references:ID;constraint:OnDelete:SET NULL,OnUpdate:CASCADE;" json:"-"`
}

func (Activity) TableName() string { return "activities" }
