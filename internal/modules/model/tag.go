package model

import (
	"time"

	"github.com/google/uuid"
)

type Tag struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	Slug       string    `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Category   string    `gorm:"type:text" json:"category"`
	UsageCount int64     `gorm:"not null;default:0" json:"usage_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }
