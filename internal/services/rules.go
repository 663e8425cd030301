package services

import (
	"context"
	"fmt"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

// RulesService reads and replaces the detection rules.
type RulesService struct {
	repo RulesRepository
	now  func() time.Time
}

func NewRulesService(repo RulesRepository) *RulesService {
	return &RulesService{repo: repo, now: time.Now}
}

func (s *RulesService) Get(ctx context.Context) (types.DetectionRules, error) {
	return s.repo.Get(ctx)
}

// Update validates and stores new rules. Only later admissions see them.
func (s *RulesService) Update(ctx context.Context, rules types.DetectionRules) (types.DetectionRules, error) {
	if err := rules.Validate(); err != nil {
		return types.DetectionRules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	rules.UpdatedAt = s.now()
	return s.repo.Save(ctx, rules)
}
