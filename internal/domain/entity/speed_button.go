package entity

import (
	"time"

	"github.com/google/uuid"
)

// SpeedButton 预置的作者引导快捷项
type SpeedButton struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Label        string    `json:"label" gorm:"type:varchar(100);not null"`
	Guidance     string    `json:"guidance" gorm:"type:text;not null"`
	UseAlternate bool      `json:"use_alternate" gorm:"default:false"`
	DisplayOrder int       `json:"display_order" gorm:"default:0"`
	IsDefault    bool      `json:"is_default" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SpeedButton) TableName() string {
	return "speed_buttons"
}

// NewSpeedButton 创建快捷引导项
func NewSpeedButton(label, guidance string) *SpeedButton {
	return &SpeedButton{ID: uuid.NewString(), Label: label, Guidance: guidance}
}
