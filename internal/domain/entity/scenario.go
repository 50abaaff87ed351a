// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Scenario 世界设定，生成期间只读
type Scenario struct {
	ID         string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string         `json:"name" gorm:"type:varchar(255);not null"`
	Setting    string         `json:"setting" gorm:"type:text"`
	TimePeriod string         `json:"time_period,omitempty" gorm:"type:varchar(255)"`
	Genre      string         `json:"genre,omitempty" gorm:"type:varchar(100)"`
	Tone       string         `json:"tone,omitempty" gorm:"type:varchar(100)"`
	Premise    string         `json:"premise,omitempty" gorm:"type:text"`
	Themes     pq.StringArray `json:"themes" gorm:"type:text[]"`
	WorldRules pq.StringArray `json:"world_rules" gorm:"type:text[]"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Scenario) TableName() string {
	return "scenarios"
}

// NewScenario 创建新场景
func NewScenario(name, setting string) *Scenario {
	return &Scenario{
		ID:         uuid.NewString(),
		Name:       name,
		Setting:    setting,
		Themes:     pq.StringArray{},
		WorldRules: pq.StringArray{},
	}
}
