package entity

import (
	"time"

	"github.com/google/uuid"
)

// CharacterRole 角色在某个故事中的定位，按故事区分
type CharacterRole string

const (
	CharacterRoleProtagonist CharacterRole = "protagonist"
	CharacterRoleSupporting  CharacterRole = "supporting"
	CharacterRoleAntagonist  CharacterRole = "antagonist"
)

// IsValid 校验角色定位
func (r CharacterRole) IsValid() bool {
	switch r {
	case CharacterRoleProtagonist, CharacterRoleSupporting, CharacterRoleAntagonist:
		return true
	}
	return false
}

// Character 角色实体
type Character struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null"`
	Description     string    `json:"description,omitempty" gorm:"type:text"`
	Personality     string    `json:"personality,omitempty" gorm:"type:text"`
	Motivations     string    `json:"motivations,omitempty" gorm:"type:text"`
	Backstory       string    `json:"backstory,omitempty" gorm:"type:text"`
	VoiceID         string    `json:"voice_id,omitempty" gorm:"type:varchar(255)"`
	VoiceProviderID string    `json:"voice_provider_id,omitempty" gorm:"type:uuid"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Character) TableName() string {
	return "characters"
}

// NewCharacter 创建新角色
func NewCharacter(name string) *Character {
	return &Character{ID: uuid.NewString(), Name: name}
}

// StoryCharacter 故事与角色的关联，携带该故事内的角色定位
type StoryCharacter struct {
	StoryID     string        `json:"story_id" gorm:"type:uuid;primaryKey"`
	CharacterID string        `json:"character_id" gorm:"type:uuid;primaryKey"`
	Role        CharacterRole `json:"role" gorm:"type:varchar(32);default:'supporting'"`
	CreatedAt   time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (StoryCharacter) TableName() string {
	return "story_characters"
}

// CastMember 角色及其在故事中的定位
type CastMember struct {
	Character *Character
	Role      CharacterRole
}
