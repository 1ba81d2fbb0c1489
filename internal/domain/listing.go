package domain

import (
	"fmt"
)

// Address identifies an account on the target chain. The zero address is the
// registry's sentinel for "no account".
type Address string

// ZeroAddress is the empty-account sentinel used by the listing registry for
// listings without a responder.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// IsZero reports whether the address is the empty-account sentinel or unset.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func (a Address) String() string {
	return string(a)
}

// ExpertiseType says whether a listing seeks expertise or offers it.
// The registry encodes it as an ordinal; construct via ExpertiseTypeFromOrdinal
// at the decode boundary.
type ExpertiseType string

const (
	ExpertiseSeeking  ExpertiseType = "SEEKING"
	ExpertiseOffering ExpertiseType = "OFFERING"
)

var expertiseTypeByOrdinal = map[uint8]ExpertiseType{
	0: ExpertiseSeeking,
	1: ExpertiseOffering,
}

// ExpertiseTypeFromOrdinal maps a registry ordinal to its name. Out-of-range
// ordinals are an error, never clamped.
func ExpertiseTypeFromOrdinal(ord uint8) (ExpertiseType, error) {
	t, ok := expertiseTypeByOrdinal[ord]
	if !ok {
		return "", fmt.Errorf("expertise type ordinal %d out of range", ord)
	}
	return t, nil
}

// Ordinal returns the registry encoding for the expertise type.
func (t ExpertiseType) Ordinal() uint8 {
	if t == ExpertiseOffering {
		return 1
	}
	return 0
}

// IsValid checks the expertise type against the supported enum values.
func (t ExpertiseType) IsValid() bool {
	return t == ExpertiseSeeking || t == ExpertiseOffering
}

func (t ExpertiseType) String() string {
	return string(t)
}

// ListingStatus is the lifecycle state of a listing as recorded by the
// registry.
type ListingStatus string

const (
	StatusOpen       ListingStatus = "Open"
	StatusInProgress ListingStatus = "InProgress"
	StatusResolved   ListingStatus = "Resolved"
	StatusExpired    ListingStatus = "Expired"
)

var listingStatusByOrdinal = map[uint8]ListingStatus{
	0: StatusOpen,
	1: StatusInProgress,
	2: StatusResolved,
	3: StatusExpired,
}

// ListingStatusFromOrdinal maps a registry ordinal to its name. Out-of-range
// ordinals are an error, never clamped.
func ListingStatusFromOrdinal(ord uint8) (ListingStatus, error) {
	s, ok := listingStatusByOrdinal[ord]
	if !ok {
		return "", fmt.Errorf("listing status ordinal %d out of range", ord)
	}
	return s, nil
}

// Ordinal returns the registry encoding for the status.
func (s ListingStatus) Ordinal() uint8 {
	switch s {
	case StatusInProgress:
		return 1
	case StatusResolved:
		return 2
	case StatusExpired:
		return 3
	default:
		return 0
	}
}

// IsValid checks the status against the supported enum values.
func (s ListingStatus) IsValid() bool {
	_, ok := listingStatusByOrdinal[s.Ordinal()]
	return ok && listingStatusByOrdinal[s.Ordinal()] == s
}

// IsTerminal reports whether the listing accepts no further operations.
func (s ListingStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusExpired
}

func (s ListingStatus) String() string {
	return string(s)
}

// ParseListingStatus constructs a ListingStatus from external input, e.g. a
// query parameter on the facade.
func ParseListingStatus(s string) (ListingStatus, error) {
	status := ListingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown listing status %q", s)
	}
	return status, nil
}

// Listing mirrors one record of the listing registry. Instances are immutable
// snapshots; the cache replaces them wholesale after a refetch.
type Listing struct {
	ID            uint64        `json:"id"`
	Creator       Address       `json:"creator"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	IsProject     bool          `json:"is_project"`
	ExpertiseType ExpertiseType `json:"expertise_type"`
	Expertise     string        `json:"expertise"`
	ContactMethod string        `json:"contact_method"`
	Timestamp     int64         `json:"timestamp"` // creation instant, unix seconds
	Active        bool          `json:"active"`
	Status        ListingStatus `json:"status"`
	Responder     Address       `json:"responder"`
}

// CheckInvariants verifies the status/responder coupling: an Open listing has
// no responder, and a responder implies the listing left Open.
func (l Listing) CheckInvariants() error {
	if l.Status == StatusOpen && !l.Responder.IsZero() {
		return fmt.Errorf("listing %d is Open but has responder %s", l.ID, l.Responder)
	}
	return nil
}

// Categories is the known category set from the listing registry. It is used
// for display-side validation only; the registry stores category as free text.
var Categories = []string{
	"Biohacking",
	"Longevity Research",
	"Biotech",
	"Community Building",
	"Governance",
	"Technology",
}

// IsKnownCategory reports whether the category is in the known display set.
func IsKnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
