// Package listings holds the client-side view logic over listing collections:
// pure filtering and ordering, plus the mutation service that submits listing
// writes to the registry.
package listings

import (
	"cmp"
	"slices"
	"strings"

	"vitalia/internal/domain"
)

// Filter is a conjunction of listing predicates. Zero-valued fields do not
// constrain the result.
type Filter struct {
	// Status narrows to one lifecycle status. When nil the default view
	// applies: only active, open listings.
	Status *domain.ListingStatus

	// IncludeAll disables the default view when Status is nil, returning
	// listings in every status.
	IncludeAll bool

	Creator       domain.Address
	Responder     domain.Address
	Category      string
	Expertise     string
	ExpertiseType domain.ExpertiseType

	// Search matches case-insensitively against title, description, and
	// expertise.
	Search string
}

// Apply evaluates the filter over a listing collection and returns the
// matches in input order. The input slice is never modified.
func Apply(in []domain.Listing, f Filter) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	for _, l := range in {
		if !matches(l, f, needle) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matches(l domain.Listing, f Filter, needle string) bool {
	switch {
	case f.Status != nil:
		if l.Status != *f.Status {
			return false
		}
	case !f.IncludeAll:
		// Default browse view: live marketplace entries only.
		if !l.Active || l.Status != domain.StatusOpen {
			return false
		}
	}

	if f.Creator != "" && l.Creator != f.Creator {
		return false
	}
	if f.Responder != "" && l.Responder != f.Responder {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Expertise != "" && l.Expertise != f.Expertise {
		return false
	}
	if f.ExpertiseType != "" && l.ExpertiseType != f.ExpertiseType {
		return false
	}
	if needle != "" && !searchMatch(l, needle) {
		return false
	}
	return true
}

func searchMatch(l domain.Listing, needle string) bool {
	return strings.Contains(strings.ToLower(l.Title), needle) ||
		strings.Contains(strings.ToLower(l.Description), needle) ||
		strings.Contains(strings.ToLower(l.Expertise), needle)
}

// Order is a listing sort order.
type Order string

const (
	OrderNewest    Order = "newest"
	OrderOldest    Order = "oldest"
	OrderExpertise Order = "expertise"
)

// ParseOrder constructs an Order from external input. Empty input means
// newest-first.
func ParseOrder(raw string) (Order, bool) {
	switch Order(raw) {
	case "":
		return OrderNewest, true
	case OrderNewest, OrderOldest, OrderExpertise:
		return Order(raw), true
	default:
		return "", false
	}
}

// SortBy returns the collection ordered by the given order. Ties break on
// ascending listing ID so output is deterministic for equal keys. The input
// slice is never modified.
func SortBy(in []domain.Listing, order Order) []domain.Listing {
	out := slices.Clone(in)
	switch order {
	case OrderOldest:
		slices.SortStableFunc(out, func(a, b domain.Listing) int {
			if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	case OrderExpertise:
		slices.SortStableFunc(out, func(a, b domain.Listing) int {
			if c := strings.Compare(a.Expertise, b.Expertise); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	default: // newest
		slices.SortStableFunc(out, func(a, b domain.Listing) int {
			if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	}
	return out
}
