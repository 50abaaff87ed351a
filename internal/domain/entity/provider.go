package entity

import (
	"time"

	"github.com/google/uuid"
)

// LLMProviderType 文本生成后端类型
type LLMProviderType string

const (
	LLMProviderOllama    LLMProviderType = "ollama"
	LLMProviderLMStudio  LLMProviderType = "lmstudio"
	LLMProviderKoboldCpp LLMProviderType = "koboldcpp"
	LLMProviderOpenAI    LLMProviderType = "openai"
)

// IsValid 校验后端类型
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderOllama, LLMProviderLMStudio, LLMProviderKoboldCpp, LLMProviderOpenAI:
		return true
	}
	return false
}

// ProviderRole 生成时选用的 provider 角色
type ProviderRole string

const (
	ProviderRoleDefault   ProviderRole = "default"
	ProviderRoleAlternate ProviderRole = "alternate"
)

// Other 返回另一个角色，用于标题生成兜底
func (r ProviderRole) Other() ProviderRole {
	if r == ProviderRoleAlternate {
		return ProviderRoleDefault
	}
	return ProviderRoleAlternate
}

// LLMProvider 文本生成后端配置
type LLMProvider struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name         string          `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	ProviderType LLMProviderType `json:"provider_type" gorm:"type:varchar(32);not null"`
	BaseURL      string          `json:"base_url" gorm:"type:varchar(512);not null"`
	APIKey       string          `json:"-" gorm:"type:varchar(512)"`
	DefaultModel string          `json:"default_model,omitempty" gorm:"type:varchar(255)"`
	IsDefault    bool            `json:"is_default" gorm:"default:false"`
	IsAlternate  bool            `json:"is_alternate" gorm:"default:false"`
	Enabled      bool            `json:"enabled" gorm:"default:true"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (LLMProvider) TableName() string {
	return "llm_providers"
}

// NewLLMProvider 创建文本生成后端配置
func NewLLMProvider(name string, providerType LLMProviderType, baseURL string) *LLMProvider {
	return &LLMProvider{
		ID:           uuid.NewString(),
		Name:         name,
		ProviderType: providerType,
		BaseURL:      baseURL,
		Enabled:      true,
	}
}

// TTSProviderType 语音合成后端类型
type TTSProviderType string

const (
	TTSProviderKokoro           TTSProviderType = "kokoro"
	TTSProviderPiper            TTSProviderType = "piper"
	TTSProviderCoquiXTTS        TTSProviderType = "coqui_xtts"
	TTSProviderOpenAICompatible TTSProviderType = "openai_compatible"
	TTSProviderChatterbox       TTSProviderType = "chatterbox"
)

// IsValid 校验语音后端类型
func (t TTSProviderType) IsValid() bool {
	switch t {
	case TTSProviderKokoro, TTSProviderPiper, TTSProviderCoquiXTTS, TTSProviderOpenAICompatible, TTSProviderChatterbox:
		return true
	}
	return false
}

// TTSProvider 语音合成后端配置
type TTSProvider struct {
	ID                   string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name                 string            `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	ProviderType         TTSProviderType   `json:"provider_type" gorm:"type:varchar(32);not null"`
	BaseURL              string            `json:"base_url" gorm:"type:varchar(512);not null"`
	APIKey               string            `json:"-" gorm:"type:varchar(512)"`
	DefaultVoice         string            `json:"default_voice,omitempty" gorm:"type:varchar(255)"`
	SupportsStreaming    bool              `json:"supports_streaming" gorm:"default:false"`
	SupportsVoiceCloning bool              `json:"supports_voice_cloning" gorm:"default:false"`
	IsDefault            bool              `json:"is_default" gorm:"default:false"`
	Enabled              bool              `json:"enabled" gorm:"default:true"`
	Settings             map[string]string `json:"settings,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt            time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (TTSProvider) TableName() string {
	return "tts_providers"
}

// NewTTSProvider 创建语音合成后端配置
func NewTTSProvider(name string, providerType TTSProviderType, baseURL string) *TTSProvider {
	return &TTSProvider{
		ID:           uuid.NewString(),
		Name:         name,
		ProviderType: providerType,
		BaseURL:      baseURL,
		Enabled:      true,
		Settings:     map[string]string{},
	}
}
