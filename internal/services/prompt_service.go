package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"memory_stitcher_go_backend/internal/models"
)

// PromptSelector picks the prompt to use from the active candidates.
type PromptSelector interface {
	Select(candidates []models.SystemPrompt) (*models.SystemPrompt, bool)
}

// FirstPromptSelector always returns the first candidate.
type FirstPromptSelector struct{}

func (FirstPromptSelector) Select(candidates []models.SystemPrompt) (*models.SystemPrompt, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	p := candidates[0]
	return &p, true
}

// ABPromptSelector picks uniformly among candidates whose A/B group is unset or "A".
type ABPromptSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewABPromptSelector(src rand.Source) *ABPromptSelector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &ABPromptSelector{rnd: rand.New(src)}
}

func (s *ABPromptSelector) Select(candidates []models.SystemPrompt) (*models.SystemPrompt, bool) {
	var eligible []models.SystemPrompt
	for _, c := range candidates {
		if c.ABGroup == nil || *c.ABGroup == "A" {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}
	s.mu.Lock()
	i := s.rnd.Intn(len(eligible))
	s.mu.Unlock()
	p := eligible[i]
	return &p, true
}

type PromptService struct {
	store    PromptStore
	selector PromptSelector
}

func NewPromptService(store PromptStore, selector PromptSelector) *PromptService {
	if selector == nil {
		selector = FirstPromptSelector{}
	}
	return &PromptService{store: store, selector: selector}
}

// ActivePrompt returns the prompt to format the next call with, or ErrConfiguration.
func (s *PromptService) ActivePrompt(ctx context.Context, promptType string) (*models.SystemPrompt, error) {
	candidates, err := s.store.ListActivePrompts(ctx, promptType)
	if err != nil {
		return nil, persistenceErr("read active system prompt", err)
	}
	p, ok := s.selector.Select(candidates)
	if !ok {
		return nil, ErrConfiguration
	}
	return p, nil
}
