package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User is the actor resolved from a bearer key. Identity management lives elsewhere;
// this table only maps keys to actor ids.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Identifier string    `gorm:"type:text;not null;uniqueIndex" json:"identifier"`

	SecretKeyHMAC    string `gorm:"type:char(64);uniqueIndex" json:"-"`
	SecretKeyHashPHC string `gorm:"type:varchar(255)" json:"-"`

	Configs datatypes.JSONMap `gorm:"type:jsonb" swaggertype:"object" json:"configs"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }
