package dto

import (
	"storyteller-api/internal/domain/entity"
	apperrors "storyteller-api/pkg/errors"
)

// CreateSpeedButtonRequest 创建快捷引导请求
type CreateSpeedButtonRequest struct {
	Label        string `json:"label" binding:"required,max=100"`
	Guidance     string `json:"guidance" binding:"required"`
	UseAlternate bool   `json:"use_alternate"`
	DisplayOrder int    `json:"display_order"`
	IsDefault    bool   `json:"is_default"`
}

// ToEntity 转换为实体
func (r *CreateSpeedButtonRequest) ToEntity() *entity.SpeedButton {
	b := entity.NewSpeedButton(r.Label, r.Guidance)
	b.UseAlternate = r.UseAlternate
	b.DisplayOrder = r.DisplayOrder
	b.IsDefault = r.IsDefault
	return b
}

// UpdateSpeedButtonRequest 更新快捷引导请求
type UpdateSpeedButtonRequest struct {
	Label        *string `json:"label,omitempty" binding:"omitempty,min=1,max=100"`
	Guidance     *string `json:"guidance,omitempty" binding:"omitempty,min=1"`
	UseAlternate *bool   `json:"use_alternate,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
	IsDefault    *bool   `json:"is_default,omitempty"`
}

// ApplyTo 应用更新
func (r *UpdateSpeedButtonRequest) ApplyTo(b *entity.SpeedButton) {
	if r.Label != nil {
		b.Label = *r.Label
	}
	if r.Guidance != nil {
		b.Guidance = *r.Guidance
	}
	if r.UseAlternate != nil {
		b.UseAlternate = *r.UseAlternate
	}
	if r.DisplayOrder != nil {
		b.DisplayOrder = *r.DisplayOrder
	}
	if r.IsDefault != nil {
		b.IsDefault = *r.IsDefault
	}
}

// ReorderSpeedButtonsRequest 按给定顺序重排全部或部分快捷引导
type ReorderSpeedButtonsRequest struct {
	ButtonIDs []string `json:"button_ids" binding:"required,min=1"`
}

// Validate 拒绝重复 id
func (r *ReorderSpeedButtonsRequest) Validate() error {
	seen := make(map[string]bool, len(r.ButtonIDs))
	for _, id := range r.ButtonIDs {
		if seen[id] {
			return apperrors.ErrInvalidParam.WithDetail("duplicate button id: " + id)
		}
		seen[id] = true
	}
	return nil
}
