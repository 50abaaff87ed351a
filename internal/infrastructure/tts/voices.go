package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/pkg/logger"
)

const (
	voiceListTimeout = 10 * time.Second
	healthTimeout    = 5 * time.Second
	maxVoiceBody     = 1 << 20
)

// Voice 后端可用音色
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// ListVoices 查询 provider 的音色列表
//
// piper 的 HTTP 服务在 /api/voices，其余类型走 /v1/audio/voices；
// 响应可能是 {"voices": [...]} 或裸数组，元素可能是字符串或对象。
func (s *Synthesizer) ListVoices(ctx context.Context, provider *entity.TTSProvider) ([]Voice, error) {
	path := "/v1/audio/voices"
	if provider.ProviderType == entity.TTSProviderPiper {
		path = "/api/voices"
	}
	body, err := s.get(ctx, provider, path, voiceListTimeout)
	if err != nil {
		return nil, err
	}
	return decodeVoices(body)
}

// Health 依次探测 /health、音色列表和 /v1/models，任一成功即视为可用
func (s *Synthesizer) Health(ctx context.Context, provider *entity.TTSProvider) bool {
	if _, err := s.get(ctx, provider, "/health", healthTimeout); err == nil {
		return true
	}
	if _, err := s.ListVoices(ctx, provider); err == nil {
		return true
	}

	client := s.newClient(provider)
	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if _, err := client.ListModels(hctx); err != nil {
		logger.Debug(ctx, "tts provider health check failed", "provider", provider.Name, "error", err.Error())
		return false
	}
	return true
}

// DefaultVoices 后端不提供音色列表时使用的内置音色
func DefaultVoices(t entity.TTSProviderType) []Voice {
	switch t {
	case entity.TTSProviderKokoro:
		return []Voice{
			{ID: "af_bella", Name: "Bella (American Female)", Language: "en-US", Gender: "female"},
			{ID: "af_sarah", Name: "Sarah (American Female)", Language: "en-US", Gender: "female"},
			{ID: "af_nicole", Name: "Nicole (American Female)", Language: "en-US", Gender: "female"},
			{ID: "af_sky", Name: "Sky (American Female)", Language: "en-US", Gender: "female"},
			{ID: "am_adam", Name: "Adam (American Male)", Language: "en-US", Gender: "male"},
			{ID: "am_michael", Name: "Michael (American Male)", Language: "en-US", Gender: "male"},
			{ID: "bf_emma", Name: "Emma (British Female)", Language: "en-GB", Gender: "female"},
			{ID: "bm_george", Name: "George (British Male)", Language: "en-GB", Gender: "male"},
		}
	case entity.TTSProviderPiper:
		return []Voice{
			{ID: "en_US-lessac-medium", Name: "Lessac (US English)", Language: "en-US", Gender: "female"},
			{ID: "en_US-amy-medium", Name: "Amy (US English)", Language: "en-US", Gender: "female"},
			{ID: "en_US-danny-low", Name: "Danny (US English)", Language: "en-US", Gender: "male"},
			{ID: "en_US-ryan-medium", Name: "Ryan (US English)", Language: "en-US", Gender: "male"},
			{ID: "en_GB-alan-medium", Name: "Alan (British English)", Language: "en-GB", Gender: "male"},
			{ID: "en_GB-alba-medium", Name: "Alba (British English)", Language: "en-GB", Gender: "female"},
		}
	case entity.TTSProviderOpenAICompatible:
		return []Voice{
			{ID: string(openai.VoiceAlloy), Name: "Alloy", Language: "en", Gender: "neutral"},
			{ID: string(openai.VoiceEcho), Name: "Echo", Language: "en", Gender: "male"},
			{ID: string(openai.VoiceFable), Name: "Fable", Language: "en", Gender: "female"},
			{ID: string(openai.VoiceOnyx), Name: "Onyx", Language: "en", Gender: "male"},
			{ID: string(openai.VoiceNova), Name: "Nova", Language: "en", Gender: "female"},
			{ID: string(openai.VoiceShimmer), Name: "Shimmer", Language: "en", Gender: "female"},
		}
	case entity.TTSProviderCoquiXTTS:
		return []Voice{{ID: "default", Name: "Default XTTS Voice", Language: "en", Gender: "unknown"}}
	default:
		return []Voice{{ID: "default", Name: "Default Voice", Language: "en", Gender: "unknown"}}
	}
}

func (s *Synthesizer) get(ctx context.Context, provider *entity.TTSProvider, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nativeBaseURL(provider.BaseURL)+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceBody))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return body, nil
}

func decodeVoices(body []byte) ([]Voice, error) {
	var items []json.RawMessage
	var wrapped struct {
		Voices []json.RawMessage `json:"voices"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Voices != nil {
		items = wrapped.Voices
	} else if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unrecognized voice list: %w", err)
	}

	voices := make([]Voice, 0, len(items))
	for _, raw := range items {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			voices = append(voices, voiceFromID(id))
			continue
		}
		var obj struct {
			ID       string `json:"id"`
			VoiceID  string `json:"voice_id"`
			Name     string `json:"name"`
			Language string `json:"language"`
			Gender   string `json:"gender"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		v := Voice{ID: obj.ID, Name: obj.Name, Language: obj.Language, Gender: obj.Gender}
		if v.ID == "" {
			v.ID = obj.VoiceID
		}
		if v.ID == "" {
			v.ID = obj.Name
		}
		if v.ID == "" {
			continue
		}
		if v.Name == "" {
			v.Name = v.ID
		}
		voices = append(voices, v)
	}
	return voices, nil
}

var kokoroPrefixes = []struct {
	prefix, kind, language, gender string
}{
	{"af_", "American Female", "en-US", "female"},
	{"am_", "American Male", "en-US", "male"},
	{"bf_", "British Female", "en-GB", "female"},
	{"bm_", "British Male", "en-GB", "male"},
}

// voiceFromID kokoro 风格的 af_bella 展开为 "Bella (American Female)"
func voiceFromID(id string) Voice {
	for _, p := range kokoroPrefixes {
		if rest, ok := strings.CutPrefix(id, p.prefix); ok && rest != "" {
			name := strings.ReplaceAll(rest, "_", " ")
			name = strings.ToUpper(name[:1]) + name[1:]
			return Voice{ID: id, Name: name + " (" + p.kind + ")", Language: p.language, Gender: p.gender}
		}
	}
	return Voice{ID: id, Name: id}
}

// nativeBaseURL 去掉 /v1 后缀，得到服务根地址
func nativeBaseURL(baseURL string) string {
	return strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")
}
