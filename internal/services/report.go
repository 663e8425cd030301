package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/projectsentinel/apiserver/internal/report"
	"github.com/projectsentinel/apiserver/types"
)

const (
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ObjectStore receives exported report artifacts.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// ReportService builds gaming reports and exports them.
type ReportService struct {
	repos       Repositories
	leaderboard *LeaderboardService
	objects     ObjectStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewReportService constructs the service. objects may be nil, in which
// case reports are returned without being exported.
func NewReportService(repos Repositories, leaderboard *LeaderboardService, objects ObjectStore, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		repos:       repos,
		leaderboard: leaderboard,
		objects:     objects,
		logger:      logger,
		now:         time.Now,
	}
}

// Generate builds the gaming report over all users and, when object
// storage is configured, uploads it with a leaderboard workbook.
func (s *ReportService) Generate(ctx context.Context) (types.GamingReport, error) {
	in := report.Input{Now: s.now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Users, err = s.repos.Users.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		in.Submissions, err = s.repos.Submissions.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		in.Alerts, err = s.repos.Alerts.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		in.Rules, err = s.repos.Rules.Get(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.GamingReport{}, fmt.Errorf("load report data: %w", err)
	}

	result, err := report.Build(in)
	if err != nil {
		return types.GamingReport{}, fmt.Errorf("build report: %w", err)
	}
	if s.objects == nil {
		return result, nil
	}

	prefix := fmt.Sprintf("reports/%s/%s", in.Now.Format("2006-01-02"), uuid.NewString())
	result.ReportKey = prefix + "/gaming-report.json"
	result.LeaderboardKey = prefix + "/leaderboard.xlsx"

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		return s.objects.Put(ectx, result.ReportKey, bytes.NewReader(data), int64(len(data)), contentTypeJSON)
	})
	eg.Go(func() error {
		entries, err := s.leaderboard.List(ectx, false)
		if err != nil {
			return err
		}
		data, err := report.LeaderboardWorkbook(entries)
		if err != nil {
			return err
		}
		return s.objects.Put(ectx, result.LeaderboardKey, bytes.NewReader(data), int64(len(data)), contentTypeXLSX)
	})
	if err := eg.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "report export failed", "key", prefix, "error", err)
		return types.GamingReport{}, fmt.Errorf("export report: %w", err)
	}
	s.logger.InfoContext(ctx, "gaming report exported", "report_key", result.ReportKey, "flagged_users", len(result.FlaggedUsers))
	return result, nil
}
