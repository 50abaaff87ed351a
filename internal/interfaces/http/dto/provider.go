package dto

import (
	"time"

	"storyteller-api/internal/application/provider"
	"storyteller-api/internal/domain/entity"
)

// CreateLLMProviderRequest 创建文本生成后端请求
type CreateLLMProviderRequest struct {
	Name         string                 `json:"name" binding:"required,max=255"`
	ProviderType entity.LLMProviderType `json:"provider_type" binding:"required"`
	BaseURL      string                 `json:"base_url" binding:"required,max=512"`
	APIKey       string                 `json:"api_key" binding:"max=512"`
	DefaultModel string                 `json:"default_model" binding:"max=255"`
	IsDefault    bool                   `json:"is_default"`
	IsAlternate  bool                   `json:"is_alternate"`
	Enabled      *bool                  `json:"enabled"`
}

// ToEntity 转换为实体
func (r *CreateLLMProviderRequest) ToEntity() *entity.LLMProvider {
	p := entity.NewLLMProvider(r.Name, r.ProviderType, r.BaseURL)
	p.APIKey = r.APIKey
	p.DefaultModel = r.DefaultModel
	p.IsDefault = r.IsDefault
	p.IsAlternate = r.IsAlternate
	if r.Enabled != nil {
		p.Enabled = *r.Enabled
	}
	return p
}

// UpdateLLMProviderRequest 更新文本生成后端请求
type UpdateLLMProviderRequest struct {
	Name         *string                 `json:"name,omitempty" binding:"omitempty,max=255"`
	ProviderType *entity.LLMProviderType `json:"provider_type,omitempty"`
	BaseURL      *string                 `json:"base_url,omitempty" binding:"omitempty,max=512"`
	APIKey       *string                 `json:"api_key,omitempty" binding:"omitempty,max=512"`
	DefaultModel *string                 `json:"default_model,omitempty" binding:"omitempty,max=255"`
	IsDefault    *bool                   `json:"is_default,omitempty"`
	IsAlternate  *bool                   `json:"is_alternate,omitempty"`
	Enabled      *bool                   `json:"enabled,omitempty"`
}

// Patch 转换为服务层补丁
func (r *UpdateLLMProviderRequest) Patch() provider.LLMPatch {
	return provider.LLMPatch{
		Name:         r.Name,
		ProviderType: r.ProviderType,
		BaseURL:      r.BaseURL,
		APIKey:       r.APIKey,
		DefaultModel: r.DefaultModel,
		IsDefault:    r.IsDefault,
		IsAlternate:  r.IsAlternate,
		Enabled:      r.Enabled,
	}
}

// LLMProviderResponse 文本生成后端响应，不回显密钥
type LLMProviderResponse struct {
	*entity.LLMProvider
	HasAPIKey bool `json:"has_api_key"`
}

// ToLLMProviderResponse 转换单个 provider
func ToLLMProviderResponse(p *entity.LLMProvider) *LLMProviderResponse {
	return &LLMProviderResponse{LLMProvider: p, HasAPIKey: p.APIKey != ""}
}

// ToLLMProviderList 转换 provider 列表
func ToLLMProviderList(items []*entity.LLMProvider) []*LLMProviderResponse {
	out := make([]*LLMProviderResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ToLLMProviderResponse(p))
	}
	return out
}

// ProviderHealthResponse provider 可达性
type ProviderHealthResponse struct {
	ProviderID string    `json:"provider_id"`
	Healthy    bool      `json:"healthy"`
	CheckedAt  time.Time `json:"checked_at"`
}

// CreateTTSProviderRequest 创建语音后端请求
type CreateTTSProviderRequest struct {
	Name                 string                 `json:"name" binding:"required,max=255"`
	ProviderType         entity.TTSProviderType `json:"provider_type" binding:"required"`
	BaseURL              string                 `json:"base_url" binding:"required,max=512"`
	APIKey               string                 `json:"api_key" binding:"max=512"`
	DefaultVoice         string                 `json:"default_voice" binding:"max=255"`
	SupportsStreaming    bool                   `json:"supports_streaming"`
	SupportsVoiceCloning bool                   `json:"supports_voice_cloning"`
	IsDefault            bool                   `json:"is_default"`
	Enabled              *bool                  `json:"enabled"`
	Settings             map[string]string      `json:"settings"`
}

// ToEntity 转换为实体
func (r *CreateTTSProviderRequest) ToEntity() *entity.TTSProvider {
	p := entity.NewTTSProvider(r.Name, r.ProviderType, r.BaseURL)
	p.APIKey = r.APIKey
	p.DefaultVoice = r.DefaultVoice
	p.SupportsStreaming = r.SupportsStreaming
	p.SupportsVoiceCloning = r.SupportsVoiceCloning
	p.IsDefault = r.IsDefault
	if r.Enabled != nil {
		p.Enabled = *r.Enabled
	}
	if r.Settings != nil {
		p.Settings = r.Settings
	}
	return p
}

// UpdateTTSProviderRequest 更新语音后端请求
type UpdateTTSProviderRequest struct {
	Name                 *string                 `json:"name,omitempty" binding:"omitempty,max=255"`
	ProviderType         *entity.TTSProviderType `json:"provider_type,omitempty"`
	BaseURL              *string                 `json:"base_url,omitempty" binding:"omitempty,max=512"`
	APIKey               *string                 `json:"api_key,omitempty" binding:"omitempty,max=512"`
	DefaultVoice         *string                 `json:"default_voice,omitempty" binding:"omitempty,max=255"`
	SupportsStreaming    *bool                   `json:"supports_streaming,omitempty"`
	SupportsVoiceCloning *bool                   `json:"supports_voice_cloning,omitempty"`
	IsDefault            *bool                   `json:"is_default,omitempty"`
	Enabled              *bool                   `json:"enabled,omitempty"`
	Settings             map[string]string       `json:"settings,omitempty"`
}

// Patch 转换为服务层补丁
func (r *UpdateTTSProviderRequest) Patch() provider.TTSPatch {
	return provider.TTSPatch{
		Name:                 r.Name,
		ProviderType:         r.ProviderType,
		BaseURL:              r.BaseURL,
		APIKey:               r.APIKey,
		DefaultVoice:         r.DefaultVoice,
		SupportsStreaming:    r.SupportsStreaming,
		SupportsVoiceCloning: r.SupportsVoiceCloning,
		IsDefault:            r.IsDefault,
		Enabled:              r.Enabled,
		Settings:             r.Settings,
	}
}
