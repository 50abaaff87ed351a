// Package audio 剧集语音合成：入队与 worker 端处理
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/infrastructure/messaging"
	"storyteller-api/internal/infrastructure/tts"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

// Publisher 语音任务发布
type Publisher interface {
	PublishAudioJob(ctx context.Context, job *messaging.AudioJobMessage) (string, error)
}

// ProviderResolver 按 id 或默认值解析语音后端
type ProviderResolver interface {
	Resolve(ctx context.Context, id string) (*entity.TTSProvider, error)
}

// Synthesizer 语音合成与后端探测
type Synthesizer interface {
	Format() string
	Synthesize(ctx context.Context, provider *entity.TTSProvider, req tts.Request) (*tts.Result, error)
	ListVoices(ctx context.Context, provider *entity.TTSProvider) ([]tts.Voice, error)
	Health(ctx context.Context, provider *entity.TTSProvider) bool
}

// 即时合成的输入约束
const (
	MaxSpeakRunes = 10000
	MinSpeed      = 0.5
	MaxSpeed      = 2.0
)

// 音色列表来源
const (
	VoiceSourceProvider = "provider"
	VoiceSourceBuiltin  = "builtin"
)

// SpeakRequest 即时合成一段文本，通常是生成流中的一句
type SpeakRequest struct {
	ProviderID string
	Text       string
	Voice      string
	Speed      float64
}

// VoiceList 音色列表
type VoiceList struct {
	ProviderID string      `json:"provider_id"`
	Source     string      `json:"source"`
	Voices     []tts.Voice `json:"voices"`
}

// ProviderCheck 后端连通性检查结果
type ProviderCheck struct {
	ProviderID           string   `json:"provider_id"`
	Healthy              bool     `json:"healthy"`
	Message              string   `json:"message"`
	Voices               []string `json:"voices,omitempty"`
	SupportsStreaming    bool     `json:"supports_streaming"`
	SupportsVoiceCloning bool     `json:"supports_voice_cloning"`
}

// Service 剧集语音服务
type Service struct {
	publisher  Publisher
	episodes   repository.EpisodeRepository
	characters repository.CharacterRepository
	providers  ProviderResolver
	synth      Synthesizer
	audioDir   string
	publicPath string
}

// NewService 创建语音服务；API 进程只用到入队，worker 进程只用到 Handle
func NewService(
	publisher Publisher,
	episodes repository.EpisodeRepository,
	characters repository.CharacterRepository,
	providers ProviderResolver,
	synth Synthesizer,
	cfg *config.Config,
) *Service {
	s := &Service{
		publisher:  publisher,
		episodes:   episodes,
		characters: characters,
		providers:  providers,
		synth:      synth,
		audioDir:   "./data/audio",
		publicPath: "/audio",
	}
	if cfg != nil {
		if cfg.TTS.AudioDir != "" {
			s.audioDir = cfg.TTS.AudioDir
		}
		if cfg.TTS.PublicPath != "" {
			s.publicPath = strings.TrimRight(cfg.TTS.PublicPath, "/")
		}
	}
	return s
}

// Enqueue 生成完成后自动入队，使用默认语音后端
func (s *Service) Enqueue(ctx context.Context, storyID, episodeID string) (string, error) {
	return s.publish(ctx, &messaging.AudioJobMessage{StoryID: storyID, EpisodeID: episodeID})
}

// Request 为已完成的剧集请求合成语音
func (s *Service) Request(ctx context.Context, episodeID, providerID, voice string) (string, error) {
	ep, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load episode")
	}
	if ep == nil {
		return "", apperrors.ErrEpisodeNotFound.WithDetail(episodeID)
	}
	if strings.TrimSpace(ep.Content) == "" {
		return "", apperrors.ErrInvalidParam.WithDetail("episode has no content yet")
	}
	if _, err := s.providers.Resolve(ctx, providerID); err != nil {
		return "", err
	}
	return s.publish(ctx, &messaging.AudioJobMessage{
		StoryID:    ep.StoryID,
		EpisodeID:  ep.ID,
		ProviderID: providerID,
		Voice:      strings.TrimSpace(voice),
	})
}

func (s *Service) publish(ctx context.Context, job *messaging.AudioJobMessage) (string, error) {
	if s.publisher == nil {
		return "", apperrors.ErrQueuePublishFailed.WithDetail("audio queue is not configured")
	}
	job.JobID = uuid.NewString()
	if _, err := s.publisher.PublishAudioJob(ctx, job); err != nil {
		return "", apperrors.ErrQueuePublishFailed.WithError(err)
	}
	logger.Info(ctx, "audio job enqueued", "job_id", job.JobID, "episode_id", job.EpisodeID)
	return job.JobID, nil
}

// Speak 同步合成一段文本并写入音频目录，返回可访问的地址
func (s *Service) Speak(ctx context.Context, req SpeakRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	switch {
	case text == "":
		return "", apperrors.ErrInvalidParam.WithDetail("text is required")
	case len([]rune(text)) > MaxSpeakRunes:
		return "", apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("text exceeds %d characters", MaxSpeakRunes))
	case req.Speed != 0 && (req.Speed < MinSpeed || req.Speed > MaxSpeed):
		return "", apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("speed must be within [%.1f, %.1f]", MinSpeed, MaxSpeed))
	}

	provider, err := s.providers.Resolve(ctx, req.ProviderID)
	if err != nil {
		return "", err
	}
	res, err := s.synth.Synthesize(ctx, provider, tts.Request{
		Text:  text,
		Voice: strings.TrimSpace(req.Voice),
		Speed: req.Speed,
	})
	if err != nil {
		return "", apperrors.ErrTTSCallFailed.WithError(err)
	}

	url, err := s.store(uuid.NewString()+"."+res.Format, res.Audio)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternalError, "failed to store audio")
	}
	logger.Debug(ctx, "text synthesized", "provider", provider.Name, "bytes", len(res.Audio))
	return url, nil
}

// Voices 查询后端音色；后端不提供列表时返回该类型的内置音色
func (s *Service) Voices(ctx context.Context, providerID string) (*VoiceList, error) {
	provider, err := s.providers.Resolve(ctx, providerID)
	if err != nil {
		return nil, err
	}
	voices, err := s.synth.ListVoices(ctx, provider)
	if err != nil || len(voices) == 0 {
		if err != nil {
			logger.Warn(ctx, "tts voice listing failed, using builtin voices",
				"provider", provider.Name,
				"error", err.Error(),
			)
		}
		return &VoiceList{ProviderID: provider.ID, Source: VoiceSourceBuiltin, Voices: tts.DefaultVoices(provider.ProviderType)}, nil
	}
	return &VoiceList{ProviderID: provider.ID, Source: VoiceSourceProvider, Voices: voices}, nil
}

// TestProvider 检查后端连通性，可用时附带音色 id
func (s *Service) TestProvider(ctx context.Context, providerID string) (*ProviderCheck, error) {
	provider, err := s.providers.Resolve(ctx, providerID)
	if err != nil {
		return nil, err
	}
	check := &ProviderCheck{
		ProviderID:           provider.ID,
		SupportsStreaming:    provider.SupportsStreaming,
		SupportsVoiceCloning: provider.SupportsVoiceCloning,
	}
	if !s.synth.Health(ctx, provider) {
		check.Message = "tts provider is not responding"
		return check, nil
	}
	check.Healthy = true
	check.Message = "connection successful"
	list, err := s.Voices(ctx, provider.ID)
	if err != nil {
		return nil, err
	}
	for _, v := range list.Voices {
		check.Voices = append(check.Voices, v.ID)
	}
	return check, nil
}

// Handle 消费语音任务；剧集已删除时直接确认
func (s *Service) Handle(ctx context.Context, msg *messaging.Message) error {
	job, err := msg.AudioJob()
	if err != nil {
		return err
	}
	return s.Render(ctx, job)
}

// Render 合成剧集语音，写入音频目录并回填 audio_url
func (s *Service) Render(ctx context.Context, job *messaging.AudioJobMessage) error {
	ep, err := s.episodes.GetByID(ctx, job.EpisodeID)
	if err != nil {
		return fmt.Errorf("failed to load episode: %w", err)
	}
	if ep == nil || strings.TrimSpace(ep.Content) == "" {
		logger.Warn(ctx, "episode gone or empty, dropping audio job", "job_id", job.JobID)
		return nil
	}

	provider, err := s.providers.Resolve(ctx, job.ProviderID)
	if err != nil {
		return err
	}
	voice := job.Voice
	if voice == "" {
		voice = s.narratorVoice(ctx, ep.StoryID, provider)
	}

	res, err := s.synth.Synthesize(ctx, provider, tts.Request{Text: ep.Content, Voice: voice})
	if err != nil {
		return apperrors.ErrTTSCallFailed.WithError(err)
	}

	url, err := s.store(ep.ID+"."+res.Format, res.Audio)
	if err != nil {
		return err
	}
	if err := s.episodes.UpdateAudioURL(ctx, ep.ID, url); err != nil {
		return fmt.Errorf("failed to update audio url: %w", err)
	}
	logger.Info(ctx, "episode audio rendered",
		"provider", provider.Name,
		"bytes", len(res.Audio),
		"audio_url", url,
	)
	return nil
}

// store 写入音频目录，返回公开地址
func (s *Service) store(file string, audio []byte) (string, error) {
	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.audioDir, file), audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	return s.publicPath + "/" + file, nil
}

// narratorVoice 主角配置了该后端的音色时使用之，否则交给后端默认音色
func (s *Service) narratorVoice(ctx context.Context, storyID string, provider *entity.TTSProvider) string {
	if s.characters == nil {
		return ""
	}
	cast, err := s.characters.ListCast(ctx, storyID)
	if err != nil {
		logger.Warn(ctx, "failed to load cast for voice selection", "error", err.Error())
		return ""
	}
	for _, m := range cast {
		if m == nil || m.Character == nil || m.Role != entity.CharacterRoleProtagonist {
			continue
		}
		c := m.Character
		if c.VoiceID != "" && (c.VoiceProviderID == "" || c.VoiceProviderID == provider.ID) {
			return c.VoiceID
		}
	}
	return ""
}
