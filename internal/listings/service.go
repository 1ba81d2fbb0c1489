package listings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
	"vitalia/internal/query"
	"vitalia/internal/txtrack"
	domainerrors "vitalia/pkg/domain-errors"
)

// createTarget serializes listing creations: the registry assigns the ID, so
// there is no per-listing target to lock until the write confirms.
const createTarget = "listing:create"

// View is a filtered, ordered listing collection plus freshness metadata.
type View struct {
	Listings  []domain.Listing
	FetchedAt time.Time
	Stale     bool
}

// Service is the listing registry facade: cached reads shaped by the filter
// engine, and tracked writes.
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

// NewService wires the listing facade.
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

// Browse reads the listing collection the filter needs, applies it, and
// orders the result. Account-scoped filters read across every status
// collection because a creator's listings may sit in any lifecycle state.
func (s *Service) Browse(ctx context.Context, f Filter, order Order) (View, error) {
	var (
		collected []domain.Listing
		fetchedAt time.Time
		stale     bool
	)

	switch {
	case f.Status != nil:
		result, err := s.queries.Listings(ctx, chain.ByStatus(*f.Status))
		if err != nil {
			return View{}, err
		}
		collected = result.Listings
		fetchedAt = result.FetchedAt
		stale = result.Stale
	case f.Creator != "" || f.Responder != "" || f.IncludeAll:
		var err error
		collected, fetchedAt, stale, err = s.allStatuses(ctx)
		if err != nil {
			return View{}, err
		}
	case f.Expertise != "":
		result, err := s.queries.Listings(ctx, chain.ByExpertise(f.Expertise))
		if err != nil {
			return View{}, err
		}
		collected = result.Listings
		fetchedAt = result.FetchedAt
		stale = result.Stale
	default:
		result, err := s.queries.Listings(ctx, chain.AllActive())
		if err != nil {
			return View{}, err
		}
		collected = result.Listings
		fetchedAt = result.FetchedAt
		stale = result.Stale
	}

	filtered := Apply(collected, f)
	return View{
		Listings:  SortBy(filtered, order),
		FetchedAt: fetchedAt,
		Stale:     stale,
	}, nil
}

// allStatuses merges every status collection into one deduplicated set.
func (s *Service) allStatuses(ctx context.Context) ([]domain.Listing, time.Time, bool, error) {
	statuses := []domain.ListingStatus{
		domain.StatusOpen,
		domain.StatusInProgress,
		domain.StatusResolved,
		domain.StatusExpired,
	}

	var (
		out       []domain.Listing
		seen      = make(map[uint64]struct{})
		fetchedAt time.Time
		stale     bool
	)
	for _, status := range statuses {
		result, err := s.queries.Listings(ctx, chain.ByStatus(status))
		if err != nil {
			return nil, time.Time{}, false, err
		}
		for _, l := range result.Listings {
			if _, dup := seen[l.ID]; dup {
				continue
			}
			seen[l.ID] = struct{}{}
			out = append(out, l)
		}
		if fetchedAt.IsZero() || result.FetchedAt.Before(fetchedAt) {
			fetchedAt = result.FetchedAt
		}
		stale = stale || result.Stale
	}
	return out, fetchedAt, stale, nil
}

// Get returns a single listing by ID.
func (s *Service) Get(ctx context.Context, id uint64) (domain.Listing, error) {
	return s.queries.Listing(ctx, id)
}

// Categories returns the registry category list.
func (s *Service) Categories(ctx context.Context) (query.CategoriesResult, error) {
	return s.queries.Categories(ctx)
}

// Create validates a listing intent and submits it as a tracked write.
func (s *Service) Create(ctx context.Context, p chain.CreateListingParams) (uuid.UUID, error) {
	if err := validateCreate(p); err != nil {
		return uuid.Nil, err
	}

	return s.tracker.Submit(ctx, "createListing", createTarget,
		func(ctx context.Context) (chain.TxHandle, error) {
			return s.chain.SubmitCreateListing(ctx, p)
		},
		func(ctx context.Context) {
			s.queries.InvalidateListings(ctx, 0)
		},
	)
}

// Respond submits a respond-to-listing write. The listing must be open and
// active; the check here gives fast feedback, the registry enforces it
// authoritatively.
func (s *Service) Respond(ctx context.Context, listingID uint64) (uuid.UUID, error) {
	listing, err := s.queries.Listing(ctx, listingID)
	if err != nil {
		return uuid.Nil, err
	}
	if !listing.Active || listing.Status != domain.StatusOpen {
		return uuid.Nil, domainerrors.Newf(domainerrors.CodeConflict,
			"listing %d is not open for responses", listingID)
	}

	return s.tracker.Submit(ctx, "respondToListing", listingTarget(listingID),
		func(ctx context.Context) (chain.TxHandle, error) {
			return s.chain.SubmitRespond(ctx, listingID)
		},
		func(ctx context.Context) {
			s.queries.InvalidateListings(ctx, listingID)
		},
	)
}

// Resolve submits a mark-resolved write for a listing in progress.
func (s *Service) Resolve(ctx context.Context, listingID uint64) (uuid.UUID, error) {
	listing, err := s.queries.Listing(ctx, listingID)
	if err != nil {
		return uuid.Nil, err
	}
	if listing.Status != domain.StatusInProgress {
		return uuid.Nil, domainerrors.Newf(domainerrors.CodeConflict,
			"listing %d is not in progress", listingID)
	}

	return s.tracker.Submit(ctx, "markResolved", listingTarget(listingID),
		func(ctx context.Context) (chain.TxHandle, error) {
			return s.chain.SubmitMarkResolved(ctx, listingID)
		},
		func(ctx context.Context) {
			s.queries.InvalidateListings(ctx, listingID)
		},
	)
}

// OperationStatus reports a tracked write by its operation ID.
func (s *Service) OperationStatus(id uuid.UUID) (txtrack.Operation, bool) {
	return s.tracker.Status(id)
}

func listingTarget(id uint64) string {
	return fmt.Sprintf("listing:%d", id)
}

func validateCreate(p chain.CreateListingParams) error {
	if p.Title == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "title is required")
	}
	if p.Description == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "description is required")
	}
	if p.ContactMethod == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "contact method is required")
	}
	if p.Expertise == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "expertise is required")
	}
	if !p.ExpertiseType.IsValid() {
		return domainerrors.Newf(domainerrors.CodeInvalidInput, "unknown expertise type %q", p.ExpertiseType)
	}
	if !domain.IsKnownCategory(p.Category) {
		return domainerrors.Newf(domainerrors.CodeInvalidInput, "unknown category %q", p.Category)
	}
	return nil
}
