// Package tts 通过 OpenAI 兼容的 /audio/speech 端点合成剧集语音
package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/pkg/metrics"
)

const (
	defaultVoice     = "alloy"
	defaultModel     = "tts-1"
	placeholderKey   = "not-needed"
	settingModelKey  = "model"
	settingSpeedKey  = "speed"
	maxSpeechRuneLen = 4096
)

// Request 单次合成请求；Speed 为 0 时使用 provider 设置
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Result 合成结果
type Result struct {
	Audio  []byte
	Format string
}

// Synthesizer 语音合成器
type Synthesizer struct {
	model   string
	format  string
	timeout time.Duration
}

// NewSynthesizer 创建语音合成器
func NewSynthesizer(cfg *config.Config) *Synthesizer {
	s := &Synthesizer{
		model:   cfg.TTS.Model,
		format:  cfg.TTS.ResponseFormat,
		timeout: cfg.TTS.Timeout,
	}
	if s.model == "" {
		s.model = defaultModel
	}
	if s.format == "" {
		s.format = string(openai.SpeechResponseFormatMp3)
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}
	return s
}

// Format 输出音频格式，同时作为文件扩展名
func (s *Synthesizer) Format() string {
	return s.format
}

// Synthesize 调用 provider 合成语音；超长文本按句子边界分段后拼接
func (s *Synthesizer) Synthesize(ctx context.Context, provider *entity.TTSProvider, req Request) (*Result, error) {
	if provider == nil {
		return nil, fmt.Errorf("tts provider is nil")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	voice := req.Voice
	if voice == "" {
		voice = provider.DefaultVoice
	}
	if voice == "" {
		voice = defaultVoice
	}

	start := time.Now()
	client := s.newClient(provider)

	var audio []byte
	for _, chunk := range SplitText(text, maxSpeechRuneLen) {
		part, err := s.speak(ctx, client, provider, chunk, voice, req.Speed)
		if err != nil {
			metrics.TTSSynthesisTotal.WithLabelValues(provider.Name, "error").Inc()
			return nil, err
		}
		audio = append(audio, part...)
	}

	metrics.TTSSynthesisTotal.WithLabelValues(provider.Name, "success").Inc()
	metrics.TTSSynthesisDuration.WithLabelValues(provider.Name).Observe(time.Since(start).Seconds())
	return &Result{Audio: audio, Format: s.format}, nil
}

func (s *Synthesizer) speak(ctx context.Context, client *openai.Client, provider *entity.TTSProvider, text, voice string, speed float64) ([]byte, error) {
	model := s.model
	if m := provider.Settings[settingModelKey]; m != "" {
		model = m
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(s.format),
	}
	if speed > 0 {
		speechReq.Speed = speed
	} else if setting := provider.Settings[settingSpeedKey]; setting != "" {
		var v float64
		if _, err := fmt.Sscanf(setting, "%g", &v); err == nil && v > 0 {
			speechReq.Speed = v
		}
	}

	resp, err := client.CreateSpeech(ctx, speechReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	return data, nil
}

func (s *Synthesizer) newClient(provider *entity.TTSProvider) *openai.Client {
	key := provider.APIKey
	if key == "" {
		key = placeholderKey
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = speechBaseURL(provider.BaseURL)
	cfg.HTTPClient = &http.Client{Timeout: s.timeout}
	return openai.NewClientWithConfig(cfg)
}

// speechBaseURL go-openai 在 BaseURL 后拼接 /audio/speech，这里补齐 /v1
func speechBaseURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}

// SplitText 在不超过 limit 个字符的前提下按段落、句子边界切分文本
func SplitText(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, piece := range splitPieces(text) {
		if len([]rune(cur.String()))+len([]rune(piece)) > limit {
			flush()
		}
		// 单句超长时硬切
		for len([]rune(piece)) > limit {
			r := []rune(piece)
			chunks = append(chunks, strings.TrimSpace(string(r[:limit])))
			piece = string(r[limit:])
		}
		cur.WriteString(piece)
	}
	flush()
	return chunks
}

// splitPieces 切成以终止符或换行结尾的片段，片段拼接后等于原文
func splitPieces(text string) []string {
	var pieces []string
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			end := i + 1
			pieces = append(pieces, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
