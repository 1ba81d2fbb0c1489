package chain

import (
	"fmt"

	"vitalia/internal/domain"
)

// SelectorKind is the choice of registry read operation for a listing query.
type SelectorKind string

const (
	SelectAllActive   SelectorKind = "all-active"
	SelectByStatus    SelectorKind = "by-status"
	SelectByExpertise SelectorKind = "by-expertise"
)

// Selector picks which listing registry read to issue. It is also the cache
// key for listing queries: changing the selector is a key change, not a
// filter over existing data.
type Selector struct {
	Kind      SelectorKind
	Status    domain.ListingStatus
	Expertise string
}

// AllActive selects the registry's broad active-listings read.
func AllActive() Selector {
	return Selector{Kind: SelectAllActive}
}

// ByStatus selects the registry's by-status read.
func ByStatus(status domain.ListingStatus) Selector {
	return Selector{Kind: SelectByStatus, Status: status}
}

// ByExpertise selects the registry's by-expertise read.
func ByExpertise(tag string) Selector {
	return Selector{Kind: SelectByExpertise, Expertise: tag}
}

// Key returns a stable cache key for the selector.
func (s Selector) Key() string {
	switch s.Kind {
	case SelectByStatus:
		return fmt.Sprintf("listings:status:%s", s.Status)
	case SelectByExpertise:
		return fmt.Sprintf("listings:expertise:%s", s.Expertise)
	default:
		return "listings:all-active"
	}
}
