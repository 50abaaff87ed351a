package memstore

import (
	"context"
	"fmt"
	"strings"

	"storyteller-api/internal/domain/entity"
)

// Fixture 预置的故事数据
type Fixture struct {
	Scenario *entity.Scenario
	Story    *entity.Story
	Cast     []*entity.Character
	Episodes []*entity.Episode
}

// SeedStory 写入一个场景、两名角色以及编号 1..episodes 的已完成剧集
func (s *Store) SeedStory(ctx context.Context, episodes int) (*Fixture, error) {
	scenario := entity.NewScenario("The Salt Road", "A desert caravan route")
	scenario.Genre = "Adventure"
	scenario.Themes = []string{"trust", "survival"}
	scenario.WorldRules = []string{"Water is currency"}
	if err := s.Scenarios().Create(ctx, scenario); err != nil {
		return nil, err
	}

	story := entity.NewStory("Crossing", scenario.ID)
	if err := s.Stories().Create(ctx, story); err != nil {
		return nil, err
	}

	f := &Fixture{Scenario: scenario, Story: story}
	for _, c := range []struct {
		name string
		role entity.CharacterRole
	}{
		{"Ada", entity.CharacterRoleProtagonist},
		{"Bram", entity.CharacterRoleAntagonist},
	} {
		ch := entity.NewCharacter(c.name)
		ch.Description = c.name + " travels the road"
		if err := s.Characters().Create(ctx, ch); err != nil {
			return nil, err
		}
		if err := s.Characters().Attach(ctx, &entity.StoryCharacter{StoryID: story.ID, CharacterID: ch.ID, Role: c.role}); err != nil {
			return nil, err
		}
		f.Cast = append(f.Cast, ch)
	}

	for n := 1; n <= episodes; n++ {
		ep, err := s.SeedEpisode(ctx, story.ID, n)
		if err != nil {
			return nil, err
		}
		f.Episodes = append(f.Episodes, ep)
	}
	return f, nil
}

// SeedEpisode 写入一集内容可预测的剧集
func (s *Store) SeedEpisode(ctx context.Context, storyID string, n int) (*entity.Episode, error) {
	ep := entity.NewEpisodePlaceholder(storyID, n, "")
	ep.Title = fmt.Sprintf("Title %d", n)
	ep.Content = fmt.Sprintf("Opening of episode %d.\n\nMiddle of episode %d.\n\nEnding of episode %d.", n, n, n)
	ep.Summary = fmt.Sprintf("Summary %d.", n)
	ep.WordCount = len(strings.Fields(ep.Content))
	if err := s.Episodes().Create(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}
