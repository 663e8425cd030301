// Package testutil provides an in-memory implementation of the service
// repositories for tests.
package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/store"
	"github.com/projectsentinel/apiserver/types"
)

type state struct {
	users       map[int]types.User
	submissions map[int]types.Submission
	alerts      map[int]types.GamingAlert
	entries     map[int]types.LeaderboardEntry
	prizes      []types.Prize
	rules       types.DetectionRules

	nextUser       int
	nextSubmission int
	nextAlert      int
}

func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.submissions = maps.Clone(s.submissions)
	c.alerts = maps.Clone(s.alerts)
	c.entries = maps.Clone(s.entries)
	c.prizes = slices.Clone(s.prizes)
	return &c
}

// Memory is an in-memory database. Transactions are fully serialized and
// roll back every change when their function fails.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state

	// AlertErr, when set, fails every alert append.
	AlertErr error
	// SubmissionErr, when set, fails every submission insert.
	SubmissionErr error
}

// NewMemory returns an empty database holding the default rules.
func NewMemory() *Memory {
	return &Memory{data: &state{
		users:       map[int]types.User{},
		submissions: map[int]types.Submission{},
		alerts:      map[int]types.GamingAlert{},
		entries:     map[int]types.LeaderboardEntry{},
		rules:       types.DefaultDetectionRules(),
	}}
}

// Repositories returns repositories reading and writing m.
func (m *Memory) Repositories() services.Repositories {
	return services.Repositories{
		Submissions: submissionRepo{m},
		Users:       userRepo{m},
		Rules:       rulesRepo{m},
		Alerts:      alertRepo{m},
		Leaderboard: leaderboardRepo{m},
		Prizes:      prizeRepo{m},
	}
}

func (m *Memory) InTx(ctx context.Context, fn func(services.Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(m.Repositories()); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) InUserTx(ctx context.Context, userID int, fn func(services.Repositories) error) error {
	return m.InTx(ctx, fn)
}

// InTransaction reports whether a transaction is currently open.
func (m *Memory) InTransaction() bool {
	if m.txMu.TryLock() {
		m.txMu.Unlock()
		return false
	}
	return true
}

func (m *Memory) with(fn func(*state)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.data)
}

// SeedUser stores a user with an empty leaderboard entry.
func (m *Memory) SeedUser(user types.User) types.User {
	m.with(func(s *state) {
		s.nextUser++
		user.ID = s.nextUser
		if user.Role == "" {
			user.Role = types.RoleUser
		}
		s.users[user.ID] = user
		s.entries[user.ID] = types.LeaderboardEntry{
			UserID:      user.ID,
			DisplayName: user.Name,
			Region:      user.Region,
			IsSentinel:  user.IsSentinel,
		}
	})
	return user
}

// SeedSubmission stores a submission as if it had been admitted earlier.
func (m *Memory) SeedSubmission(submission types.Submission) types.Submission {
	m.with(func(s *state) {
		s.nextSubmission++
		submission.ID = s.nextSubmission
		if submission.Status == "" {
			submission.Status = types.StatusPending
		}
		s.submissions[submission.ID] = submission
	})
	return submission
}

// SeedPrize stores a prize.
func (m *Memory) SeedPrize(prize types.Prize) {
	m.with(func(s *state) {
		prize.ID = len(s.prizes) + 1
		s.prizes = append(s.prizes, prize)
	})
}

// SetEntry replaces a leaderboard entry.
func (m *Memory) SetEntry(entry types.LeaderboardEntry) {
	m.with(func(s *state) { s.entries[entry.UserID] = entry })
}

// SetRules replaces the detection rules.
func (m *Memory) SetRules(rules types.DetectionRules) {
	m.with(func(s *state) { s.rules = rules })
}

// Submissions returns every stored submission ordered by id.
func (m *Memory) Submissions() []types.Submission {
	var out []types.Submission
	m.with(func(s *state) { out = sortedByID(s.submissions, func(v types.Submission) int { return v.ID }) })
	return out
}

// Alerts returns every stored alert ordered by id.
func (m *Memory) Alerts() []types.GamingAlert {
	var out []types.GamingAlert
	m.with(func(s *state) { out = sortedByID(s.alerts, func(v types.GamingAlert) int { return v.ID }) })
	return out
}

// Entry returns the leaderboard entry of a user.
func (m *Memory) Entry(userID int) types.LeaderboardEntry {
	var out types.LeaderboardEntry
	m.with(func(s *state) { out = s.entries[userID] })
	return out
}

func sortedByID[T any](values map[int]T, id func(T) int) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type submissionRepo struct{ m *Memory }

func (r submissionRepo) Get(ctx context.Context, id int) (types.Submission, error) {
	var (
		submission types.Submission
		ok         bool
	)
	r.m.with(func(s *state) { submission, ok = s.submissions[id] })
	if !ok {
		return types.Submission{}, store.ErrNotFound
	}
	return submission, nil
}

func (r submissionRepo) GetForUpdate(ctx context.Context, id int) (types.Submission, error) {
	return r.Get(ctx, id)
}

func (r submissionRepo) History(ctx context.Context, userID int) ([]types.Submission, error) {
	history := []types.Submission{}
	r.m.with(func(s *state) {
		for _, submission := range s.submissions {
			if submission.UserID == userID {
				history = append(history, submission)
			}
		}
	})
	sort.Slice(history, func(i, j int) bool {
		if !history[i].SubmittedAt.Equal(history[j].SubmittedAt) {
			return history[i].SubmittedAt.Before(history[j].SubmittedAt)
		}
		return history[i].ID < history[j].ID
	})
	return history, nil
}

func (r submissionRepo) List(ctx context.Context, filter types.SubmissionFilter, limit, offset int) ([]types.Submission, int, error) {
	items := []types.Submission{}
	r.m.with(func(s *state) {
		for _, submission := range s.submissions {
			if filter.UserID != 0 && submission.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && submission.Status != filter.Status {
				continue
			}
			items = append(items, submission)
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].SubmittedAt.After(items[j].SubmittedAt)
		}
		return items[i].ID > items[j].ID
	})
	return paginate(items, limit, offset), len(items), nil
}

func (r submissionRepo) ListAll(ctx context.Context) ([]types.Submission, error) {
	return r.m.Submissions(), nil
}

func (r submissionRepo) CountByStatus(ctx context.Context) (map[types.SubmissionStatus]int, error) {
	counts := map[types.SubmissionStatus]int{}
	r.m.with(func(s *state) {
		for _, submission := range s.submissions {
			counts[submission.Status]++
		}
	})
	return counts, nil
}

func (r submissionRepo) Create(ctx context.Context, submission types.Submission) (types.Submission, error) {
	if r.m.SubmissionErr != nil {
		return types.Submission{}, r.m.SubmissionErr
	}
	r.m.with(func(s *state) {
		s.nextSubmission++
		submission.ID = s.nextSubmission
		submission.UpdatedAt = submission.SubmittedAt
		s.submissions[submission.ID] = submission
	})
	return submission, nil
}

func (r submissionRepo) UpdateReview(ctx context.Context, submission types.Submission) (types.Submission, error) {
	var ok bool
	r.m.with(func(s *state) {
		if _, ok = s.submissions[submission.ID]; ok {
			submission.UpdatedAt = time.Now()
			s.submissions[submission.ID] = submission
		}
	})
	if !ok {
		return types.Submission{}, store.ErrNotFound
	}
	return submission, nil
}

type userRepo struct{ m *Memory }

func (r userRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	var (
		user types.User
		ok   bool
	)
	r.m.with(func(s *state) { user, ok = s.users[id] })
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	var (
		user types.User
		ok   bool
	)
	r.m.with(func(s *state) {
		for _, u := range s.users {
			if u.Username == username {
				user, ok = u, true
				return
			}
		}
	})
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r userRepo) List(ctx context.Context) ([]types.User, error) {
	var out []types.User
	r.m.with(func(s *state) { out = sortedByID(s.users, func(v types.User) int { return v.ID }) })
	return out, nil
}

func (r userRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	var err error
	r.m.with(func(s *state) {
		for _, u := range s.users {
			if u.Username == user.Username {
				err = errors.New("duplicate username")
				return
			}
		}
		s.nextUser++
		user.ID = s.nextUser
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
		s.users[user.ID] = user
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

type rulesRepo struct{ m *Memory }

func (r rulesRepo) Get(ctx context.Context) (types.DetectionRules, error) {
	var rules types.DetectionRules
	r.m.with(func(s *state) { rules = s.rules })
	return rules, nil
}

func (r rulesRepo) Save(ctx context.Context, rules types.DetectionRules) (types.DetectionRules, error) {
	r.m.SetRules(rules)
	return rules, nil
}

type alertRepo struct{ m *Memory }

func (r alertRepo) Append(ctx context.Context, alert types.GamingAlert) (types.GamingAlert, error) {
	if r.m.AlertErr != nil {
		return types.GamingAlert{}, r.m.AlertErr
	}
	r.m.with(func(s *state) {
		s.nextAlert++
		alert.ID = s.nextAlert
		if alert.CreatedAt.IsZero() {
			alert.CreatedAt = time.Now()
		}
		s.alerts[alert.ID] = alert
	})
	return alert, nil
}

func (r alertRepo) List(ctx context.Context, filter types.AlertFilter, limit, offset int) ([]types.GamingAlert, int, error) {
	all := r.m.Alerts()
	items := []types.GamingAlert{}
	for i := len(all) - 1; i >= 0; i-- {
		alert := all[i]
		if filter.UserID != 0 && alert.UserID != filter.UserID {
			continue
		}
		if filter.Acknowledged != nil && alert.Acknowledged != *filter.Acknowledged {
			continue
		}
		items = append(items, alert)
	}
	return paginate(items, limit, offset), len(items), nil
}

func (r alertRepo) ListAll(ctx context.Context) ([]types.GamingAlert, error) {
	return r.m.Alerts(), nil
}

func (r alertRepo) Acknowledge(ctx context.Context, id int, at time.Time) (types.GamingAlert, error) {
	var (
		alert types.GamingAlert
		ok    bool
	)
	r.m.with(func(s *state) {
		alert, ok = s.alerts[id]
		if ok && !alert.Acknowledged {
			alert.Acknowledged = true
			alert.AcknowledgedAt = &at
			s.alerts[id] = alert
		}
	})
	if !ok {
		return types.GamingAlert{}, store.ErrNotFound
	}
	return alert, nil
}

func (r alertRepo) AcknowledgeUser(ctx context.Context, userID int, at time.Time) (int, error) {
	changed := 0
	r.m.with(func(s *state) {
		for id, alert := range s.alerts {
			if alert.UserID == userID && !alert.Acknowledged {
				alert.Acknowledged = true
				alert.AcknowledgedAt = &at
				s.alerts[id] = alert
				changed++
			}
		}
	})
	return changed, nil
}

type leaderboardRepo struct{ m *Memory }

func (r leaderboardRepo) Create(ctx context.Context, entry types.LeaderboardEntry) error {
	r.m.SetEntry(entry)
	return nil
}

func (r leaderboardRepo) GetForUpdate(ctx context.Context, userID int) (types.LeaderboardEntry, error) {
	var (
		entry types.LeaderboardEntry
		ok    bool
	)
	r.m.with(func(s *state) { entry, ok = s.entries[userID] })
	if !ok {
		return types.LeaderboardEntry{}, store.ErrNotFound
	}
	return entry, nil
}

func (r leaderboardRepo) Save(ctx context.Context, entry types.LeaderboardEntry) error {
	entry.Rank = 0
	r.m.SetEntry(entry)
	return nil
}

func (r leaderboardRepo) List(ctx context.Context) ([]types.LeaderboardEntry, error) {
	var out []types.LeaderboardEntry
	r.m.with(func(s *state) { out = sortedByID(s.entries, func(v types.LeaderboardEntry) int { return v.UserID }) })
	return out, nil
}

type prizeRepo struct{ m *Memory }

func (r prizeRepo) ListActive(ctx context.Context) ([]types.Prize, error) {
	var out []types.Prize
	r.m.with(func(s *state) {
		for _, prize := range s.prizes {
			if prize.IsActive {
				out = append(out, prize)
			}
		}
	})
	return out, nil
}

// Cache is an in-memory LeaderboardCache.
type Cache struct {
	mu            sync.Mutex
	entries       []types.LeaderboardEntry
	stored        int64
	ok            bool
	version       int64
	Invalidations int
}

func (c *Cache) Get(ctx context.Context) ([]types.LeaderboardEntry, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && c.stored == c.version {
		return slices.Clone(c.entries), c.version, true, nil
	}
	return nil, c.version, false, nil
}

func (c *Cache) Set(ctx context.Context, version int64, entries []types.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries, c.stored, c.ok = slices.Clone(entries), version, true
	return nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.Invalidations++
	return nil
}

// Publisher records published events.
type Publisher struct {
	mu      sync.Mutex
	Alerts  []types.GamingAlert
	Reviews []types.Submission
}

func (p *Publisher) PublishAlert(ctx context.Context, alert types.GamingAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Alerts = append(p.Alerts, alert)
	return nil
}

func (p *Publisher) PublishReview(ctx context.Context, submission types.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Reviews = append(p.Reviews, submission)
	return nil
}
