package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	VisibilityPrivate = "private"
	VisibilityTeam    = "team"
	VisibilityPublic  = "public"

	UsageInternal = "internal"
	UsagePublic   = "public"
)

type Asset struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string    `gorm:"type:text;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:text;not null;index" json:"category"`

	EventName      string `gorm:"type:text" json:"event_name"`
	Company        string `gorm:"type:text" json:"company"`
	Project        string `gorm:"type:text" json:"project"`
	Campaign       string `gorm:"type:text" json:"campaign"`
	ProductionYear *int   `json:"production_year"`

	FileKey      string  `gorm:"type:text;not null;uniqueIndex" json:"file_key"`
	ThumbnailKey string  `gorm:"type:text;not null" json:"thumbnail_key"`
	PreviewKey   *string `gorm:"type:text" json:"preview_key"`

	OriginalFilename string   `gorm:"type:text;not null" json:"original_filename"`
	Size             int64    `gorm:"column:size_bigint;type:bigint;not null" json:"size,string"`
	MIME             string   `gorm:"column:mime;type:text;not null" json:"mime"`
	Format           string   `gorm:"type:text" json:"format"`
	AssetType        string   `gorm:"type:text;not null;index" json:"asset_type"`
	Width            *int     `gorm:"column:width" json:"width"`
	Height           *int     `gorm:"column:height" json:"height"`
	Duration         *float64 `gorm:"column:duration_seconds;type:numeric" json:"duration_seconds"`

	Visibility         string `gorm:"type:text;not null;default:private" json:"visibility"`
	Usage              string `gorm:"type:text;not null;default:internal" json:"usage"`
	ReadyForPublishing bool   `gorm:"not null;default:false" json:"ready_for_publishing"`
	Status             string `gorm:"type:text;not null;index" json:"status"`

	Meta    datatypes.JSONMap `gorm:"type:jsonb" swaggertype:"object" json:"meta"`
	OwnerID uuid.UUID         `gorm:"type:uuid;not null;index" json:"owner_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Asset <-> Tag
	Tags []Tag `gorm:"many2many:asset_tags;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"tags,omitempty"`

	// Asset <-> User
	Owner *User `gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE;" json:"-"`
}

func (Asset) TableName() string { return "assets" }

// AssetTag is the join row between an asset and a tag; it records who attached the tag.
type AssetTag struct {
	AssetID uuid.UUID `gorm:"type:uuid;primaryKey" json:"asset_id"`
	TagID   uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"tag_id"`
	AddedBy uuid.UUID `gorm:"type:uuid;not null" json:"added_by"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// AssetTag <-> Asset
	Asset *Asset `gorm:"foreignKey:AssetID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// AssetTag <-> Tag
	Tag *Tag `gorm:"foreignKey:TagID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (AssetTag) TableName() string { return "asset_tags" }

// SetupJoinTables registers AssetTag as the join model for Asset.Tags. It must run
// before AutoMigrate and before any association query.
func SetupJoinTables(db *gorm.DB) error {
	return db.SetupJoinTable(&Asset{}, "Tags", &AssetTag{})
}
