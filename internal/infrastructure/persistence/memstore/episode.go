package memstore

import (
	"context"
	"fmt"
	"sort"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// EpisodeRepository 剧集仓储内存实现
type EpisodeRepository struct{ s *Store }

var _ repository.EpisodeRepository = (*EpisodeRepository)(nil)

func (r *EpisodeRepository) Create(ctx context.Context, episode *entity.Episode) error {
	if err := r.s.fail("episode.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.d.episodes {
		if e.StoryID == episode.StoryID && e.Number == episode.Number {
			return fmt.Errorf("duplicate episode number %d for story %s", episode.Number, episode.StoryID)
		}
	}
	ensureID(&episode.ID)
	r.s.touch(&episode.CreatedAt, &episode.UpdatedAt)
	r.s.d.episodes[episode.ID] = *episode
	return nil
}

func (r *EpisodeRepository) GetByID(ctx context.Context, id string) (*entity.Episode, error) {
	if err := r.s.fail("episode.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.d.episodes[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *EpisodeRepository) GetByNumber(ctx context.Context, storyID string, number int) (*entity.Episode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.d.episodes {
		if e.StoryID == storyID && e.Number == number {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (r *EpisodeRepository) Update(ctx context.Context, episode *entity.Episode) error {
	if err := r.s.fail("episode.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.episodes[episode.ID]; !ok {
		return fmt.Errorf("episode %s: %w", episode.ID, repository.ErrNotFound)
	}
	r.s.touch(nil, &episode.UpdatedAt)
	r.s.d.episodes[episode.ID] = *episode
	return nil
}

func (r *EpisodeRepository) UpdateAudioURL(ctx context.Context, id, audioURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.d.episodes[id]
	if !ok {
		return nil
	}
	e.AudioURL = audioURL
	r.s.d.episodes[id] = e
	return nil
}

func (r *EpisodeRepository) Delete(ctx context.Context, id string) error {
	if err := r.s.fail("episode.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, m := range r.s.d.memoryStates {
		if m.EpisodeID == id {
			delete(r.s.d.memoryStates, k)
		}
	}
	delete(r.s.d.episodes, id)
	return nil
}

func (r *EpisodeRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.Episode, error) {
	return r.ListUpTo(ctx, storyID, int(^uint(0)>>1))
}

func (r *EpisodeRepository) ListUpTo(ctx context.Context, storyID string, number int) ([]*entity.Episode, error) {
	if err := r.s.fail("episode.List"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Episode
	for _, e := range r.s.d.episodes {
		e := e
		if e.StoryID == storyID && e.Number <= number {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *EpisodeRepository) CountByStory(ctx context.Context, storyID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.s.d.episodes {
		if e.StoryID == storyID {
			n++
		}
	}
	return n, nil
}
