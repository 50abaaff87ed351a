// Package memstore 提供仓储接口的内存实现，用于单元测试与本地调试
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// Store 内存数据集，所有仓储共享同一把锁
type Store struct {
	mu   sync.RWMutex
	d    *dataset
	last time.Time

	// FailOn 按操作名注入错误，键形如 "episode.Update"
	FailOn map[string]error
}

type dataset struct {
	scenarios    map[string]entity.Scenario
	characters   map[string]entity.Character
	links        []entity.StoryCharacter
	stories      map[string]entity.Story
	episodes     map[string]entity.Episode
	memoryStates map[string]entity.MemoryState
	llmProviders map[string]entity.LLMProvider
	ttsProviders map[string]entity.TTSProvider
	speedButtons map[string]entity.SpeedButton
}

func newDataset() *dataset {
	return &dataset{
		scenarios:    map[string]entity.Scenario{},
		characters:   map[string]entity.Character{},
		stories:      map[string]entity.Story{},
		episodes:     map[string]entity.Episode{},
		memoryStates: map[string]entity.MemoryState{},
		llmProviders: map[string]entity.LLMProvider{},
		ttsProviders: map[string]entity.TTSProvider{},
		speedButtons: map[string]entity.SpeedButton{},
	}
}

func (d *dataset) clone() *dataset {
	cp := newDataset()
	for k, v := range d.scenarios {
		cp.scenarios[k] = v
	}
	for k, v := range d.characters {
		cp.characters[k] = v
	}
	cp.links = append(cp.links, d.links...)
	for k, v := range d.stories {
		cp.stories[k] = v
	}
	for k, v := range d.episodes {
		cp.episodes[k] = v
	}
	for k, v := range d.memoryStates {
		cp.memoryStates[k] = v
	}
	for k, v := range d.llmProviders {
		cp.llmProviders[k] = v
	}
	for k, v := range d.ttsProviders {
		cp.ttsProviders[k] = v
	}
	for k, v := range d.speedButtons {
		cp.speedButtons[k] = v
	}
	return cp
}

// New 创建空的内存数据集
func New() *Store {
	return &Store{d: newDataset(), FailOn: map[string]error{}}
}

func (s *Store) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn[op]
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// txKey 标记已处于内存事务中
type txKey struct{}

// WithTransaction 实现 repository.Transactor；失败时回滚到事务开始前的数据
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.RLock()
	snapshot := s.d.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stories 故事仓储
func (s *Store) Stories() *StoryRepository { return &StoryRepository{s: s} }

// Episodes 剧集仓储
func (s *Store) Episodes() *EpisodeRepository { return &EpisodeRepository{s: s} }

// MemoryStates 快照仓储
func (s *Store) MemoryStates() *MemoryStateRepository { return &MemoryStateRepository{s: s} }

// Scenarios 场景仓储
func (s *Store) Scenarios() *ScenarioRepository { return &ScenarioRepository{s: s} }

// Characters 角色仓储
func (s *Store) Characters() *CharacterRepository { return &CharacterRepository{s: s} }

// LLMProviders 文本生成后端仓储
func (s *Store) LLMProviders() *LLMProviderRepository { return &LLMProviderRepository{s: s} }

// TTSProviders 语音后端仓储
func (s *Store) TTSProviders() *TTSProviderRepository { return &TTSProviderRepository{s: s} }

// SpeedButtons 快捷引导仓储
func (s *Store) SpeedButtons() *SpeedButtonRepository { return &SpeedButtonRepository{s: s} }

var _ repository.Transactor = (*Store)(nil)

// touch 写入严格递增的时间戳，保证同一测试内的创建顺序可比较；调用方需持有写锁
func (s *Store) touch(created, updated *time.Time) {
	now := time.Now()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func sortByTime[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool { return at(items[i]).Before(at(items[j])) })
}
