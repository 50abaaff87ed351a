package handler

import (
	"github.com/gin-gonic/gin"

	"storyteller-api/internal/application/audio"
	"storyteller-api/internal/interfaces/http/dto"
)

// AudioHandler 剧集语音处理器
type AudioHandler struct {
	audio *audio.Service
}

// NewAudioHandler 创建语音处理器
func NewAudioHandler(svc *audio.Service) *AudioHandler {
	return &AudioHandler{audio: svc}
}

// Request 为剧集排队合成语音，完成后剧集的 audio_url 被回填
// @Summary 合成剧集语音
// @Tags Audio
// @Accept json
// @Produce json
// @Param id path string true "剧集 ID"
// @Param body body dto.AudioRequest false "语音后端与音色"
// @Success 202 {object} dto.AudioJobResponse
// @Router /v1/episodes/{id}/audio [post]
func (h *AudioHandler) Request(c *gin.Context) {
	var req dto.AudioRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	episodeID := dto.BindID(c)
	jobID, err := h.audio.Request(c.Request.Context(), episodeID, req.ProviderID, req.Voice)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Accepted(c, &dto.AudioJobResponse{JobID: jobID, EpisodeID: episodeID})
}

// Speak 即时合成一段文本，供客户端边接收 sentence 事件边朗读
// @Summary 即时语音合成
// @Tags Audio
// @Accept json
// @Produce json
// @Param body body dto.SpeakRequest true "文本、音色与语速"
// @Success 200 {object} dto.SpeakResponse
// @Router /v1/tts/generate [post]
func (h *AudioHandler) Speak(c *gin.Context) {
	var req dto.SpeakRequest
	if !bindJSON(c, &req) {
		return
	}
	url, err := h.audio.Speak(c.Request.Context(), audio.SpeakRequest{
		ProviderID: req.ProviderID,
		Text:       req.Text,
		Voice:      req.Voice,
		Speed:      req.Speed,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, &dto.SpeakResponse{AudioURL: url})
}

// @Router /v1/providers/tts/{id}/voices [get]
func (h *AudioHandler) Voices(c *gin.Context) {
	list, err := h.audio.Voices(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, list)
}

// TestProvider 检查语音后端连通性；不可达时仍返回 200，结果体中 healthy 为 false
// @Router /v1/providers/tts/{id}/test [post]
func (h *AudioHandler) TestProvider(c *gin.Context) {
	check, err := h.audio.TestProvider(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, check)
}
