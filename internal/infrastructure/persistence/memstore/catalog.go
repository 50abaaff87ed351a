package memstore

import (
	"context"
	"fmt"
	"sort"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// ScenarioRepository 场景仓储内存实现
type ScenarioRepository struct{ s *Store }

var _ repository.ScenarioRepository = (*ScenarioRepository)(nil)

func (r *ScenarioRepository) Create(ctx context.Context, scenario *entity.Scenario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&scenario.ID)
	r.s.touch(&scenario.CreatedAt, &scenario.UpdatedAt)
	r.s.d.scenarios[scenario.ID] = *scenario
	return nil
}

func (r *ScenarioRepository) GetByID(ctx context.Context, id string) (*entity.Scenario, error) {
	if err := r.s.fail("scenario.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sc, ok := r.s.d.scenarios[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (r *ScenarioRepository) Update(ctx context.Context, scenario *entity.Scenario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch(nil, &scenario.UpdatedAt)
	r.s.d.scenarios[scenario.ID] = *scenario
	return nil
}

func (r *ScenarioRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.scenarios, id)
	return nil
}

func (r *ScenarioRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Scenario], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Scenario
	for _, sc := range r.s.d.scenarios {
		sc := sc
		out = append(out, &sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return repository.SlicePage(out, pagination), nil
}

// CharacterRepository 角色仓储内存实现
type CharacterRepository struct{ s *Store }

var _ repository.CharacterRepository = (*CharacterRepository)(nil)

func (r *CharacterRepository) Create(ctx context.Context, character *entity.Character) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&character.ID)
	r.s.touch(&character.CreatedAt, &character.UpdatedAt)
	r.s.d.characters[character.ID] = *character
	return nil
}

func (r *CharacterRepository) GetByID(ctx context.Context, id string) (*entity.Character, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.d.characters[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CharacterRepository) Update(ctx context.Context, character *entity.Character) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch(nil, &character.UpdatedAt)
	r.s.d.characters[character.ID] = *character
	return nil
}

func (r *CharacterRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	links := r.s.d.links[:0]
	for _, l := range r.s.d.links {
		if l.CharacterID != id {
			links = append(links, l)
		}
	}
	r.s.d.links = links
	delete(r.s.d.characters, id)
	return nil
}

func (r *CharacterRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Character], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Character
	for _, c := range r.s.d.characters {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return repository.SlicePage(out, pagination), nil
}

func (r *CharacterRepository) Attach(ctx context.Context, link *entity.StoryCharacter) error {
	if err := r.s.fail("character.Attach"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, l := range r.s.d.links {
		if l.StoryID == link.StoryID && l.CharacterID == link.CharacterID {
			r.s.d.links[i].Role = link.Role
			return nil
		}
	}
	r.s.touch(&link.CreatedAt, nil)
	r.s.d.links = append(r.s.d.links, *link)
	return nil
}

func (r *CharacterRepository) Detach(ctx context.Context, storyID, characterID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	links := r.s.d.links[:0]
	for _, l := range r.s.d.links {
		if !(l.StoryID == storyID && l.CharacterID == characterID) {
			links = append(links, l)
		}
	}
	r.s.d.links = links
	return nil
}

func (r *CharacterRepository) ListCast(ctx context.Context, storyID string) ([]*entity.CastMember, error) {
	if err := r.s.fail("character.ListCast"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var cast []*entity.CastMember
	for _, l := range r.s.d.links {
		if l.StoryID != storyID {
			continue
		}
		c, ok := r.s.d.characters[l.CharacterID]
		if !ok {
			continue
		}
		cast = append(cast, &entity.CastMember{Character: &c, Role: l.Role})
	}
	return cast, nil
}

// LLMProviderRepository 文本生成后端仓储内存实现
type LLMProviderRepository struct{ s *Store }

var _ repository.LLMProviderRepository = (*LLMProviderRepository)(nil)

func (r *LLMProviderRepository) Create(ctx context.Context, p *entity.LLMProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&p.ID)
	r.s.touch(&p.CreatedAt, &p.UpdatedAt)
	r.s.d.llmProviders[p.ID] = *p
	return nil
}

func (r *LLMProviderRepository) GetByID(ctx context.Context, id string) (*entity.LLMProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.d.llmProviders[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *LLMProviderRepository) GetByName(ctx context.Context, name string) (*entity.LLMProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.d.llmProviders {
		if p.Name == name {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *LLMProviderRepository) GetByRole(ctx context.Context, role entity.ProviderRole) (*entity.LLMProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *entity.LLMProvider
	for _, p := range r.s.d.llmProviders {
		p := p
		if !p.Enabled {
			continue
		}
		matches := p.IsDefault
		if role == entity.ProviderRoleAlternate {
			matches = p.IsAlternate
		}
		if matches && (found == nil || p.UpdatedAt.After(found.UpdatedAt)) {
			found = &p
		}
	}
	return found, nil
}

func (r *LLMProviderRepository) Update(ctx context.Context, p *entity.LLMProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch(nil, &p.UpdatedAt)
	r.s.d.llmProviders[p.ID] = *p
	return nil
}

func (r *LLMProviderRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.llmProviders, id)
	return nil
}

func (r *LLMProviderRepository) List(ctx context.Context) ([]*entity.LLMProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.LLMProvider
	for _, p := range r.s.d.llmProviders {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *LLMProviderRepository) ClearRole(ctx context.Context, role entity.ProviderRole, exceptID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.d.llmProviders {
		if id == exceptID {
			continue
		}
		if role == entity.ProviderRoleAlternate {
			p.IsAlternate = false
		} else {
			p.IsDefault = false
		}
		r.s.d.llmProviders[id] = p
	}
	return nil
}

// TTSProviderRepository 语音后端仓储内存实现
type TTSProviderRepository struct{ s *Store }

var _ repository.TTSProviderRepository = (*TTSProviderRepository)(nil)

func (r *TTSProviderRepository) Create(ctx context.Context, p *entity.TTSProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&p.ID)
	r.s.touch(&p.CreatedAt, &p.UpdatedAt)
	r.s.d.ttsProviders[p.ID] = *p
	return nil
}

func (r *TTSProviderRepository) GetByID(ctx context.Context, id string) (*entity.TTSProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.d.ttsProviders[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *TTSProviderRepository) GetDefault(ctx context.Context) (*entity.TTSProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.d.ttsProviders {
		if p.IsDefault && p.Enabled {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *TTSProviderRepository) Update(ctx context.Context, p *entity.TTSProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch(nil, &p.UpdatedAt)
	r.s.d.ttsProviders[p.ID] = *p
	return nil
}

func (r *TTSProviderRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.ttsProviders, id)
	return nil
}

func (r *TTSProviderRepository) List(ctx context.Context) ([]*entity.TTSProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.TTSProvider
	for _, p := range r.s.d.ttsProviders {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *TTSProviderRepository) ClearDefault(ctx context.Context, exceptID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.d.ttsProviders {
		if id != exceptID {
			p.IsDefault = false
			r.s.d.ttsProviders[id] = p
		}
	}
	return nil
}

// SpeedButtonRepository 快捷引导仓储内存实现
type SpeedButtonRepository struct{ s *Store }

var _ repository.SpeedButtonRepository = (*SpeedButtonRepository)(nil)

func (r *SpeedButtonRepository) Create(ctx context.Context, b *entity.SpeedButton) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&b.ID)
	r.s.touch(&b.CreatedAt, nil)
	r.s.d.speedButtons[b.ID] = *b
	return nil
}

func (r *SpeedButtonRepository) GetByID(ctx context.Context, id string) (*entity.SpeedButton, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.d.speedButtons[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *SpeedButtonRepository) Update(ctx context.Context, b *entity.SpeedButton) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.speedButtons[b.ID] = *b
	return nil
}

func (r *SpeedButtonRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.speedButtons, id)
	return nil
}

func (r *SpeedButtonRepository) Reorder(ctx context.Context, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.s.d.speedButtons[id]; !ok {
			return fmt.Errorf("speed button %s: %w", id, repository.ErrNotFound)
		}
	}
	for i, id := range ids {
		b := r.s.d.speedButtons[id]
		b.DisplayOrder = i
		r.s.d.speedButtons[id] = b
	}
	return nil
}

func (r *SpeedButtonRepository) List(ctx context.Context) ([]*entity.SpeedButton, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.SpeedButton
	for _, b := range r.s.d.speedButtons {
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

