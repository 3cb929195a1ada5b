package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/mailposture/internal/application"
	domain "github.com/bryanwahyu/mailposture/internal/domain/scans"
)

const internalScanError = "internal scan error"

// Service implements use-cases untuk Scan
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Resolver  domain.Resolver
	Repo      domain.Repository
	Artifacts domain.ArtifactStore // optional
	Clock     application.Clock
	Logger    *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

//
// ==== USE CASES ====
//

// Scan resolves and validates the five record families of one domain. It
// only fails on a malformed domain name; DNS trouble shows up as verdicts.
func (s *Service) Scan(ctx context.Context, name string) (domain.ScanResult, error) {
	fqdn, err := domain.NormalizeDomain(name)
	if err != nil {
		return domain.ScanResult{}, err
	}
	start := s.now()

	var (
		spf, dmarc, bimi, mx domain.RecordStatus
		dkim                 domain.DKIMResult
	)
	// Families are independent; each goroutine owns one result variable.
	var g errgroup.Group
	g.Go(func() error {
		spf = s.guard(domain.RecordSPF, func() domain.RecordStatus {
			return domain.ValidateSPF(s.Resolver.ResolveTXT(ctx, fqdn))
		})
		return nil
	})
	g.Go(func() error {
		dkim = s.guardDKIM(func() domain.DKIMResult {
			return domain.ValidateDKIM(s.probeSelectors(ctx, fqdn))
		})
		return nil
	})
	g.Go(func() error {
		dmarc = s.guard(domain.RecordDMARC, func() domain.RecordStatus {
			return domain.ValidateDMARC(fqdn, s.Resolver.ResolveTXT(ctx, "_dmarc."+fqdn))
		})
		return nil
	})
	g.Go(func() error {
		bimi = s.guard(domain.RecordBIMI, func() domain.RecordStatus {
			return domain.ValidateBIMI(s.Resolver.ResolveTXT(ctx, "default._bimi."+fqdn))
		})
		return nil
	})
	g.Go(func() error {
		mx = s.guard(domain.RecordMX, func() domain.RecordStatus {
			return domain.ValidateMX(s.Resolver.ResolveMX(ctx, fqdn))
		})
		return nil
	})
	_ = g.Wait()

	return domain.ScanResult{
		ID:         domain.ScanID(uuid.New().String()),
		Domain:     fqdn,
		ScannedAt:  start,
		SPF:        spf,
		DKIM:       dkim,
		DMARC:      dmarc,
		BIMI:       bimi,
		MX:         mx,
		Summary:    domain.Summarize(spf, dkim, dmarc, mx),
		DurationMS: s.now().Sub(start).Milliseconds(),
	}, nil
}

// probeSelectors queries every common selector concurrently. Results keep
// the order of domain.DKIMSelectors. A panicking probe is re-raised on the
// caller's goroutine so guardDKIM sees it.
func (s *Service) probeSelectors(ctx context.Context, fqdn string) []domain.SelectorProbe {
	probes := make([]domain.SelectorProbe, len(domain.DKIMSelectors))
	var (
		g        errgroup.Group
		mu       sync.Mutex
		panicked any
	)
	for i, sel := range domain.DKIMSelectors {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					panicked = r
					mu.Unlock()
				}
			}()
			probes[i] = domain.SelectorProbe{
				Selector: sel,
				Records:  s.Resolver.ResolveTXT(ctx, sel+"._domainkey."+fqdn),
			}
			return nil
		})
	}
	_ = g.Wait()
	if panicked != nil {
		panic(panicked)
	}
	return probes
}

// guard turns a panicking validator into a FAIL for that family.
func (s *Service) guard(family string, fn func() domain.RecordStatus) (res domain.RecordStatus) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("validator panic", slog.String("record_type", family), slog.Any("panic", r))
			res = domain.RecordStatus{
				Status:      domain.StatusFail,
				Issues:      []string{internalScanError},
				Suggestions: []string{},
			}
		}
	}()
	return fn()
}

func (s *Service) guardDKIM(fn func() domain.DKIMResult) (res domain.DKIMResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("validator panic", slog.String("record_type", domain.RecordDKIM), slog.Any("panic", r))
			res = domain.DKIMResult{
				Status: domain.StatusFail,
				Selectors: []domain.DKIMSelectorResult{{
					Selector:    domain.NoneSelector,
					Status:      domain.StatusFail,
					Issues:      []string{internalScanError},
					Suggestions: []string{},
				}},
			}
		}
	}()
	return fn()
}

// Command untuk trigger scan
type TriggerScanCommand struct {
	TenantID string
	DomainID string
	Domain   string
}

type TriggerScanResult struct {
	Scan  domain.ScanResult  `json:"scan"`
	Score domain.ScoreResult `json:"score"`
}

// TriggerScan jalankan scan → simpan snapshot ke artifact store → simpan ke repo
func (s *Service) TriggerScan(ctx context.Context, cmd TriggerScanCommand) (TriggerScanResult, error) {
	res, err := s.Scan(ctx, cmd.Domain)
	if err != nil {
		return TriggerScanResult{}, err
	}
	res.TenantID = cmd.TenantID
	res.DomainID = cmd.DomainID

	if s.Artifacts != nil {
		url, err := s.Archive(ctx, &res)
		if err != nil {
			// snapshot archive is best effort, the scan itself still counts
			s.logger().Warn("scan archive failed", slog.String("scan_id", string(res.ID)), slog.Any("err", err))
		} else {
			res.ArtifactURL = url
		}
	}

	if err := s.Repo.Save(ctx, &res); err != nil {
		return TriggerScanResult{}, fmt.Errorf("saving scan %s: %w", res.ID, err)
	}
	return TriggerScanResult{Scan: res, Score: domain.Score(res)}, nil
}

// Archive uploads the JSON snapshot of a scan and returns its URL.
func (s *Service) Archive(ctx context.Context, res *domain.ScanResult) (string, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("marshal scan: %w", err)
	}
	key := fmt.Sprintf("%s/%s/scans/%s.json", tenantOrDefault(res.TenantID), res.Domain, res.ID)
	return s.Artifacts.Put(ctx, key, body, "application/json")
}

// Latest ambil N scan terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.ScanResult, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Paginate ambil scan per halaman
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// Get ambil 1 scan by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.ScanResult, error) {
	res, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrScanNotFound, id)
	}
	return res, nil
}

// Score recomputes the deliverability score of a stored scan.
func (s *Service) Score(ctx context.Context, tenant string, id domain.ScanID) (domain.ScoreResult, error) {
	res, err := s.Get(ctx, tenant, id)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return domain.Score(*res), nil
}

// Diff compares two stored scans of the same domain.
func (s *Service) Diff(ctx context.Context, tenant string, oldID, newID domain.ScanID) (domain.DiffResult, error) {
	prev, err := s.Get(ctx, tenant, oldID)
	if err != nil {
		return domain.DiffResult{}, err
	}
	curr, err := s.Get(ctx, tenant, newID)
	if err != nil {
		return domain.DiffResult{}, err
	}
	if prev.Domain != curr.Domain {
		return domain.DiffResult{}, fmt.Errorf("%w: scans belong to %s and %s", domain.ErrInvalidDomain, prev.Domain, curr.Domain)
	}
	return domain.Diff(domain.Normalize(*prev), domain.Normalize(*curr)), nil
}

// Summary rekap hasil scan N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (domain.StatusCounts, error) {
	return s.Repo.Summary(ctx, tenant, sinceDays)
}

func tenantOrDefault(t string) string {
	if t == "" {
		return "monitor"
	}
	return t
}
