package dto

import (
	"storyteller-api/internal/domain/entity"
)

// CreateCharacterRequest 创建角色请求
type CreateCharacterRequest struct {
	Name            string `json:"name" binding:"required,max=255"`
	Description     string `json:"description"`
	Personality     string `json:"personality"`
	Motivations     string `json:"motivations"`
	Backstory       string `json:"backstory"`
	VoiceID         string `json:"voice_id" binding:"max=255"`
	VoiceProviderID string `json:"voice_provider_id"`
}

// ToEntity 转换为角色实体
func (r *CreateCharacterRequest) ToEntity() *entity.Character {
	c := entity.NewCharacter(r.Name)
	c.Description = r.Description
	c.Personality = r.Personality
	c.Motivations = r.Motivations
	c.Backstory = r.Backstory
	c.VoiceID = r.VoiceID
	c.VoiceProviderID = r.VoiceProviderID
	return c
}

// UpdateCharacterRequest 更新角色请求
type UpdateCharacterRequest struct {
	Name            *string `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Description     *string `json:"description,omitempty"`
	Personality     *string `json:"personality,omitempty"`
	Motivations     *string `json:"motivations,omitempty"`
	Backstory       *string `json:"backstory,omitempty"`
	VoiceID         *string `json:"voice_id,omitempty" binding:"omitempty,max=255"`
	VoiceProviderID *string `json:"voice_provider_id,omitempty"`
}

// ApplyTo 应用更新
func (r *UpdateCharacterRequest) ApplyTo(c *entity.Character) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Personality != nil {
		c.Personality = *r.Personality
	}
	if r.Motivations != nil {
		c.Motivations = *r.Motivations
	}
	if r.Backstory != nil {
		c.Backstory = *r.Backstory
	}
	if r.VoiceID != nil {
		c.VoiceID = *r.VoiceID
	}
	if r.VoiceProviderID != nil {
		c.VoiceProviderID = *r.VoiceProviderID
	}
}

// AttachCharacterRequest 将角色加入故事
type AttachCharacterRequest struct {
	CharacterID string               `json:"character_id" binding:"required"`
	Role        entity.CharacterRole `json:"role"`
}

// CastMemberResponse 故事角色表条目
type CastMemberResponse struct {
	*entity.Character
	Role entity.CharacterRole `json:"role"`
}

// ToCastResponse 转换角色表
func ToCastResponse(cast []*entity.CastMember) []*CastMemberResponse {
	out := make([]*CastMemberResponse, 0, len(cast))
	for _, m := range cast {
		if m == nil || m.Character == nil {
			continue
		}
		out = append(out, &CastMemberResponse{Character: m.Character, Role: m.Role})
	}
	return out
}
