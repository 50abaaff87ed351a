package memstore

import (
	"context"
	"sort"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// MemoryStateRepository 快照仓储内存实现
type MemoryStateRepository struct{ s *Store }

var _ repository.MemoryStateRepository = (*MemoryStateRepository)(nil)

func (r *MemoryStateRepository) Create(ctx context.Context, state *entity.MemoryState) error {
	if err := r.s.fail("memory.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&state.ID)
	r.s.touch(&state.CreatedAt, nil)
	r.s.d.memoryStates[state.ID] = *state
	return nil
}

func (r *MemoryStateRepository) list(storyID string) []*entity.MemoryState {
	var out []*entity.MemoryState
	for _, m := range r.s.d.memoryStates {
		m := m
		if m.StoryID == storyID {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EpisodeNumber != out[j].EpisodeNumber {
			return out[i].EpisodeNumber < out[j].EpisodeNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryStateRepository) GetLatest(ctx context.Context, storyID string) (*entity.MemoryState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	states := r.list(storyID)
	if len(states) == 0 {
		return nil, nil
	}
	return states[len(states)-1], nil
}

func (r *MemoryStateRepository) GetByEpisode(ctx context.Context, episodeID string) (*entity.MemoryState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *entity.MemoryState
	for _, m := range r.s.d.memoryStates {
		m := m
		if m.EpisodeID == episodeID && (found == nil || m.CreatedAt.After(found.CreatedAt)) {
			found = &m
		}
	}
	return found, nil
}

func (r *MemoryStateRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.MemoryState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.list(storyID), nil
}
