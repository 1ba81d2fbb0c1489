// Package profiles is the profile registry facade: cached composed reads and
// tracked profile writes.
package profiles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
	"vitalia/internal/query"
	"vitalia/internal/txtrack"
	domainerrors "vitalia/pkg/domain-errors"
	platformstrings "vitalia/pkg/platform/strings"
)

// Service submits profile writes and serves cached profile reads.
type Service struct {
	chain   *chain.Client
	queries *query.Client
	tracker *txtrack.Tracker
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService wires the profile facade.
func NewService(chainClient *chain.Client, queries *query.Client, tracker *txtrack.Tracker, opts ...Option) (*Service, error) {
	if chainClient == nil || queries == nil || tracker == nil {
		return nil, fmt.Errorf("chain client, query client, and tracker are required")
	}
	s := &Service{chain: chainClient, queries: queries, tracker: tracker}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the composed profile view for an account.
func (s *Service) Get(ctx context.Context, account domain.Address) (query.ProfileResult, error) {
	if account.IsZero() {
		return query.ProfileResult{}, domainerrors.New(domainerrors.CodeInvalidInput, "account address is required")
	}
	return s.queries.Profile(ctx, account)
}

// ByExpertise lists accounts advertising an expertise tag.
func (s *Service) ByExpertise(ctx context.Context, tag string) (query.DirectoryResult, error) {
	if tag == "" {
		return query.DirectoryResult{}, domainerrors.New(domainerrors.CodeInvalidInput, "expertise tag is required")
	}
	return s.queries.ProfilesByExpertise(ctx, tag)
}

// Active lists every account with an active profile.
func (s *Service) Active(ctx context.Context) (query.DirectoryResult, error) {
	return s.queries.ActiveProfiles(ctx)
}

// ByOnSiteStatus lists accounts filtered by on-site presence.
func (s *Service) ByOnSiteStatus(ctx context.Context, onSite bool) (query.DirectoryResult, error) {
	return s.queries.ProfilesByOnSiteStatus(ctx, onSite)
}

// Create validates and submits a profile creation for the acting account.
func (s *Service) Create(ctx context.Context, account domain.Address, p chain.ProfileParams) (uuid.UUID, error) {
	normalized, err := normalizeParams(account, p)
	if err != nil {
		return uuid.Nil, err
	}

	return s.tracker.Submit(ctx, "createProfile", profileTarget(account),
		func(ctx context.Context) (chain.TxHandle, error) {
			return s.chain.SubmitCreateProfile(ctx, normalized)
		},
		func(ctx context.Context) {
			s.queries.InvalidateAccount(ctx, account)
		},
	)
}

// Update validates and submits a profile update for the acting account.
func (s *Service) Update(ctx context.Context, account domain.Address, p chain.ProfileParams) (uuid.UUID, error) {
	normalized, err := normalizeParams(account, p)
	if err != nil {
		return uuid.Nil, err
	}

	return s.tracker.Submit(ctx, "updateProfile", profileTarget(account),
		func(ctx context.Context) (chain.TxHandle, error) {
			return s.chain.SubmitUpdateProfile(ctx, normalized)
		},
		func(ctx context.Context) {
			s.queries.InvalidateAccount(ctx, account)
		},
	)
}

// Deactivate submits a profile deactivation for the acting account.
func (s *Service) Deactivate(ctx context.Context, account domain.Address) (uuid.UUID, error) {
	if account.IsZero() {
		return uuid.Nil, domainerrors.New(domainerrors.CodeInvalidInput, "account address is required")
	}

	return s.tracker.Submit(ctx, "deactivateProfile", profileTarget(account),
		func(ctx context.Context) (chain.TxHandle, error) {
			return s.chain.SubmitDeactivateProfile(ctx)
		},
		func(ctx context.Context) {
			s.queries.InvalidateAccount(ctx, account)
		},
	)
}

// OperationStatus reports a tracked write by its operation ID.
func (s *Service) OperationStatus(id uuid.UUID) (txtrack.Operation, bool) {
	return s.tracker.Status(id)
}

func profileTarget(account domain.Address) string {
	return "profile:" + string(account)
}

// normalizeParams validates required fields and dedupes expertise tags. Bio
// and credentials are optional on the registry and stay optional here.
func normalizeParams(account domain.Address, p chain.ProfileParams) (chain.ProfileParams, error) {
	if account.IsZero() {
		return chain.ProfileParams{}, domainerrors.New(domainerrors.CodeInvalidInput, "account address is required")
	}
	if p.ContactInfo == "" {
		return chain.ProfileParams{}, domainerrors.New(domainerrors.CodeInvalidInput, "contact info is required")
	}
	p.ExpertiseAreas = platformstrings.DedupeAndTrim(p.ExpertiseAreas)
	if len(p.ExpertiseAreas) == 0 {
		return chain.ProfileParams{}, domainerrors.New(domainerrors.CodeInvalidInput, "at least one expertise area is required")
	}
	return p, nil
}
