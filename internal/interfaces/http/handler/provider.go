package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"storyteller-api/internal/application/provider"
	"storyteller-api/internal/interfaces/http/dto"
)

// ProviderHandler 文本生成与语音后端管理
type ProviderHandler struct {
	llm *provider.Service
	tts *provider.TTSService
}

// NewProviderHandler 创建后端管理处理器
func NewProviderHandler(llm *provider.Service, tts *provider.TTSService) *ProviderHandler {
	return &ProviderHandler{llm: llm, tts: tts}
}

// ListLLM 文本生成后端列表
// @Router /v1/providers/llm [get]
func (h *ProviderHandler) ListLLM(c *gin.Context) {
	items, err := h.llm.List(c.Request.Context())
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToLLMProviderList(items))
}

// CreateLLM 注册文本生成后端
// @Summary 注册文本生成后端
// @Tags Providers
// @Accept json
// @Produce json
// @Param body body dto.CreateLLMProviderRequest true "后端配置"
// @Router /v1/providers/llm [post]
func (h *ProviderHandler) CreateLLM(c *gin.Context) {
	var req dto.CreateLLMProviderRequest
	if !bindJSON(c, &req) {
		return
	}
	p := req.ToEntity()
	if err := h.llm.Create(c.Request.Context(), p); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.ToLLMProviderResponse(p))
}

// GetLLM @Router /v1/providers/llm/{id} [get]
func (h *ProviderHandler) GetLLM(c *gin.Context) {
	p, err := h.llm.Get(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToLLMProviderResponse(p))
}

// UpdateLLM @Router /v1/providers/llm/{id} [put]
func (h *ProviderHandler) UpdateLLM(c *gin.Context) {
	var req dto.UpdateLLMProviderRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.llm.Update(c.Request.Context(), dto.BindID(c), req.Patch())
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToLLMProviderResponse(p))
}

// DeleteLLM @Router /v1/providers/llm/{id} [delete]
func (h *ProviderHandler) DeleteLLM(c *gin.Context) {
	if err := h.llm.Delete(c.Request.Context(), dto.BindID(c)); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}

// ListModels 查询后端可用模型，后端不可达时返回空列表
// @Router /v1/providers/llm/{id}/models [get]
func (h *ProviderHandler) ListModels(c *gin.Context) {
	models, err := h.llm.ListModels(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, models)
}

// Health 探测后端可达性
// @Router /v1/providers/llm/{id}/health [get]
func (h *ProviderHandler) Health(c *gin.Context) {
	id := dto.BindID(c)
	healthy, err := h.llm.Health(c.Request.Context(), id)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, &dto.ProviderHealthResponse{ProviderID: id, Healthy: healthy, CheckedAt: time.Now()})
}

// ListTTS @Router /v1/providers/tts [get]
func (h *ProviderHandler) ListTTS(c *gin.Context) {
	items, err := h.tts.List(c.Request.Context())
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, items)
}

// CreateTTS @Router /v1/providers/tts [post]
func (h *ProviderHandler) CreateTTS(c *gin.Context) {
	var req dto.CreateTTSProviderRequest
	if !bindJSON(c, &req) {
		return
	}
	p := req.ToEntity()
	if err := h.tts.Create(c.Request.Context(), p); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, p)
}

// GetTTS @Router /v1/providers/tts/{id} [get]
func (h *ProviderHandler) GetTTS(c *gin.Context) {
	p, err := h.tts.Get(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, p)
}

// UpdateTTS @Router /v1/providers/tts/{id} [put]
func (h *ProviderHandler) UpdateTTS(c *gin.Context) {
	var req dto.UpdateTTSProviderRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.tts.Update(c.Request.Context(), dto.BindID(c), req.Patch())
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, p)
}

// DeleteTTS @Router /v1/providers/tts/{id} [delete]
func (h *ProviderHandler) DeleteTTS(c *gin.Context) {
	if err := h.tts.Delete(c.Request.Context(), dto.BindID(c)); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}
