package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bryanwahyu/mailposture/internal/application"
	"github.com/bryanwahyu/mailposture/internal/domain/ai"
	"github.com/bryanwahyu/mailposture/internal/domain/analyst"
	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

type Service struct {
	client ai.Client
	repo   analyst.Repository
	clock  application.Clock
}

func NewService(client ai.Client, repo analyst.Repository, clock application.Clock) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{client: client, repo: repo, clock: clock}
}

// report is what the model sees: the scan plus its score breakdown.
type report struct {
	Scan  scans.ScanResult  `json:"scan"`
	Score scans.ScoreResult `json:"score"`
}

// AnalyzeAndStore asks the model for a remediation plan for a stored scan and
// saves it.
func (s *Service) AnalyzeAndStore(ctx context.Context, tenant string, scan *scans.ScanResult) (*analyst.Analysis, error) {
	body, err := json.Marshal(report{Scan: *scan, Score: scans.Score(*scan)})
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	out, err := s.client.Advise(ctx, scan.Domain, string(body))
	if err != nil {
		return nil, err
	}
	a := &analyst.Analysis{
		ID:        analyst.AnalysisID(uuid.New().String()),
		TenantID:  tenant,
		ScanID:    string(scan.ID),
		Domain:    scan.Domain,
		Result:    out,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses returns stored analyses, newest first.
func (s *Service) ListAnalyses(ctx context.Context, tenant string, page, pageSize int) ([]*analyst.Analysis, error) {
	return s.repo.Paginate(ctx, tenant, page, pageSize)
}

// Latest returns the newest analysis of a scan, nil if none.
func (s *Service) Latest(ctx context.Context, tenant, scanID string) (*analyst.Analysis, error) {
	return s.repo.LatestByScan(ctx, tenant, scanID)
}

