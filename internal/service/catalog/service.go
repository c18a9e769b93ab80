package catalog

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
)

const importWorkers = 4

var errMissingProfileID = errors.New("psychologist id required")

// ListInput narrows and pages a catalog listing.
type ListInput struct {
	Filter string
	Limit  int
	Offset int
}

// Page is a sliced view over a filtered listing.
type Page struct {
	Items   []domain.Psychologist `json:"items"`
	Total   int                   `json:"total"`
	HasMore bool                  `json:"has_more"`
}

// Service serves catalog listings and ingests profile snapshots.
type Service struct {
	profiles repository.PsychologistRepository
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New returns a catalog service.
func New(profiles repository.PsychologistRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{profiles: profiles, logger: logger, cfg: cfg}
}

// List returns the filtered, paged catalog.
func (s Service) List(ctx context.Context, input ListInput) (Page, error) {
	profiles, err := s.profiles.ListPsychologists(ctx)
	if err != nil {
		return Page{}, err
	}
	return s.page(Apply(profiles, input.Filter), input), nil
}

// ListByIDs returns the filtered, paged view restricted to the given profile
// identifiers. The restriction happens before the filter runs.
func (s Service) ListByIDs(ctx context.Context, ids []string, input ListInput) (Page, error) {
	if len(ids) == 0 {
		return Page{Items: []domain.Psychologist{}}, nil
	}
	profiles, err := s.profiles.ListPsychologistsByIDs(ctx, ids)
	if err != nil {
		return Page{}, err
	}
	return s.page(Apply(profiles, input.Filter), input), nil
}

// Get returns a single profile by identifier.
func (s Service) Get(ctx context.Context, id string) (*domain.Psychologist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errMissingProfileID
	}
	return s.profiles.GetPsychologistByID(ctx, id)
}

// Import parses a keyed snapshot and upserts every valid profile.
// It returns the number of profiles written.
func (s Service) Import(ctx context.Context, snapshot []byte) (int, error) {
	profiles, err := ParseSnapshot(snapshot)
	if err != nil {
		return 0, err
	}

	var imported atomic.Int64
	p := pool.New().WithContext(ctx).WithMaxGoroutines(importWorkers)
	for _, profile := range profiles {
		profile := profile
		p.Go(func(ctx context.Context) error {
			if err := s.profiles.UpsertPsychologist(ctx, &profile); err != nil {
				return err
			}
			imported.Add(1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return int(imported.Load()), err
	}
	s.logger.Info("catalog snapshot imported", "profiles", imported.Load(), "skipped", len(profiles)-int(imported.Load()))
	return int(imported.Load()), nil
}

func (s Service) page(items []domain.Psychologist, input ListInput) Page {
	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.PageSize
	}
	if limit <= 0 {
		limit = 3
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return Page{
		Items:   items[offset:end],
		Total:   total,
		HasMore: end < total,
	}
}
