package memstore

import (
	"context"
	"sort"
	"time"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// StoryRepository 故事仓储内存实现
type StoryRepository struct{ s *Store }

var _ repository.StoryRepository = (*StoryRepository)(nil)

func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	if err := r.s.fail("story.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&story.ID)
	r.s.touch(&story.CreatedAt, &story.UpdatedAt)
	r.s.d.stories[story.ID] = *story
	return nil
}

func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	if err := r.s.fail("story.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	story, ok := r.s.d.stories[id]
	if !ok {
		return nil, nil
	}
	return &story, nil
}

func (r *StoryRepository) Update(ctx context.Context, story *entity.Story) error {
	if err := r.s.fail("story.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch(nil, &story.UpdatedAt)
	r.s.d.stories[story.ID] = *story
	return nil
}

func (r *StoryRepository) UpdateStatus(ctx context.Context, id string, status entity.StoryStatus) error {
	if err := r.s.fail("story.UpdateStatus"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	story, ok := r.s.d.stories[id]
	if !ok {
		return nil
	}
	story.Status = status
	r.s.touch(nil, &story.UpdatedAt)
	r.s.d.stories[id] = story
	return nil
}

func (r *StoryRepository) Delete(ctx context.Context, id string) error {
	if err := r.s.fail("story.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, m := range r.s.d.memoryStates {
		if m.StoryID == id {
			delete(r.s.d.memoryStates, k)
		}
	}
	for k, e := range r.s.d.episodes {
		if e.StoryID == id {
			delete(r.s.d.episodes, k)
		}
	}
	links := r.s.d.links[:0]
	for _, l := range r.s.d.links {
		if l.StoryID != id {
			links = append(links, l)
		}
	}
	r.s.d.links = links
	delete(r.s.d.stories, id)
	for k, st := range r.s.d.stories {
		if st.ParentStoryID != nil && *st.ParentStoryID == id {
			st.ParentStoryID = nil
			r.s.d.stories[k] = st
		}
	}
	return nil
}

func (r *StoryRepository) List(ctx context.Context, filter *repository.StoryFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Story
	for _, st := range r.s.d.stories {
		st := st
		if filter != nil {
			if filter.Status != "" && st.Status != filter.Status {
				continue
			}
			if filter.ScenarioID != "" && st.ScenarioID != filter.ScenarioID {
				continue
			}
			if filter.RootsOnly && st.ParentStoryID != nil {
				continue
			}
		}
		out = append(out, &st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return repository.SlicePage(out, pagination), nil
}

func (r *StoryRepository) ListChildren(ctx context.Context, parentID string) ([]*entity.Story, error) {
	if err := r.s.fail("story.ListChildren"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Story
	for _, st := range r.s.d.stories {
		st := st
		if st.ParentStoryID != nil && *st.ParentStoryID == parentID {
			out = append(out, &st)
		}
	}
	sortByTime(out, func(s *entity.Story) time.Time { return s.CreatedAt })
	return out, nil
}
