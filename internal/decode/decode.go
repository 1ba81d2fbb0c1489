// Package decode turns raw positional registry records into typed domain
// entities. Decoding is pure: no I/O, no side effects, and nothing past this
// boundary ever sees a positional tuple.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"vitalia/internal/domain"
)

// Expected arities of the registry record shapes.
const (
	listingArity = 13
	profileArity = 8
	statsArity   = 4
)

// MalformedRecordError reports a raw record whose arity, field types, or enum
// ordinals do not match the expected shape. It is a data error: retrying the
// read will not change a structurally invalid response.
type MalformedRecordError struct {
	Shape  string // "listing", "profile", "stats"
	Field  string // field name, or "" for arity failures
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s record: %s", e.Shape, e.Reason)
	}
	return fmt.Sprintf("malformed %s record: field %s: %s", e.Shape, e.Field, e.Reason)
}

// IsMalformed reports whether err originated from a failed decode.
func IsMalformed(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}

func malformed(shape, field, format string, args ...any) *MalformedRecordError {
	return &MalformedRecordError{Shape: shape, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Listing decodes a 13-field positional record from the listing registry.
// Records violating the Open/responder invariant are rejected as malformed so
// no component downstream can observe an impossible state.
func Listing(raw []any) (domain.Listing, error) {
	const shape = "listing"
	if len(raw) != listingArity {
		return domain.Listing{}, malformed(shape, "", "arity %d, want %d", len(raw), listingArity)
	}

	d := fieldDecoder{shape: shape}
	listing := domain.Listing{
		ID:            d.uint64At(raw, 0, "id"),
		Creator:       d.addressAt(raw, 1, "creator"),
		Title:         d.stringAt(raw, 2, "title"),
		Description:   d.stringAt(raw, 3, "description"),
		Category:      d.stringAt(raw, 4, "category"),
		IsProject:     d.boolAt(raw, 5, "isProject"),
		Expertise:     d.stringAt(raw, 7, "expertise"),
		ContactMethod: d.stringAt(raw, 8, "contactMethod"),
		Timestamp:     d.int64At(raw, 9, "timestamp"),
		Active:        d.boolAt(raw, 10, "active"),
		Responder:     d.addressAt(raw, 12, "responder"),
	}

	expertiseOrd := d.ordinalAt(raw, 6, "expertiseType")
	statusOrd := d.ordinalAt(raw, 11, "status")
	if d.err != nil {
		return domain.Listing{}, d.err
	}

	expertiseType, err := domain.ExpertiseTypeFromOrdinal(expertiseOrd)
	if err != nil {
		return domain.Listing{}, malformed(shape, "expertiseType", "%v", err)
	}
	status, err := domain.ListingStatusFromOrdinal(statusOrd)
	if err != nil {
		return domain.Listing{}, malformed(shape, "status", "%v", err)
	}
	listing.ExpertiseType = expertiseType
	listing.Status = status

	if err := listing.CheckInvariants(); err != nil {
		return domain.Listing{}, malformed(shape, "responder", "%v", err)
	}
	return listing, nil
}

// ListingError pairs a per-element decode failure with its position in the
// raw collection.
type ListingError struct {
	Index int
	Err   error
}

func (e ListingError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

func (e ListingError) Unwrap() error {
	return e.Err
}

// Listings decodes a collection element-wise, collecting per-element failures
// so a single malformed record does not discard the rest of the read.
func Listings(raw [][]any) ([]domain.Listing, []ListingError) {
	listings := make([]domain.Listing, 0, len(raw))
	var failures []ListingError
	for i, record := range raw {
		listing, err := Listing(record)
		if err != nil {
			failures = append(failures, ListingError{Index: i, Err: err})
			continue
		}
		listings = append(listings, listing)
	}
	return listings, failures
}

// ListingsStrict decodes a collection all-or-nothing: the first malformed
// element fails the whole decode.
func ListingsStrict(raw [][]any) ([]domain.Listing, error) {
	listings, failures := Listings(raw)
	if len(failures) > 0 {
		return nil, failures[0]
	}
	return listings, nil
}

// Profile decodes an 8-field positional record from the profile registry.
// The account key is not part of the record and is supplied by the caller.
func Profile(account domain.Address, raw []any) (domain.Profile, error) {
	const shape = "profile"
	if len(raw) != profileArity {
		return domain.Profile{}, malformed(shape, "", "arity %d, want %d", len(raw), profileArity)
	}

	d := fieldDecoder{shape: shape}
	profile := domain.Profile{
		Account:          account,
		IsActive:         d.boolAt(raw, 0, "isActive"),
		ContactInfo:      d.stringAt(raw, 1, "contactInfo"),
		OnSiteStatus:     d.boolAt(raw, 2, "onSiteStatus"),
		TravelDetails:    d.stringAt(raw, 3, "travelDetails"),
		LastStatusUpdate: d.int64At(raw, 4, "lastStatusUpdate"),
		ExpertiseAreas:   d.stringSliceAt(raw, 5, "expertiseAreas"),
		Credentials:      d.stringAt(raw, 6, "credentials"),
		Bio:              d.stringAt(raw, 7, "bio"),
	}
	if d.err != nil {
		return domain.Profile{}, d.err
	}
	return profile, nil
}

// Stats decodes a 4-field positional record of account counters.
func Stats(account domain.Address, raw []any) (domain.Stats, error) {
	const shape = "stats"
	if len(raw) != statsArity {
		return domain.Stats{}, malformed(shape, "", "arity %d, want %d", len(raw), statsArity)
	}

	d := fieldDecoder{shape: shape}
	stats := domain.Stats{
		Account:    account,
		Completed:  d.uint64At(raw, 0, "completed"),
		Created:    d.uint64At(raw, 1, "created"),
		Responses:  d.uint64At(raw, 2, "responses"),
		LastActive: d.int64At(raw, 3, "lastActive"),
	}
	if d.err != nil {
		return domain.Stats{}, d.err
	}
	return stats, nil
}

// fieldDecoder accumulates the first field-level failure while letting the
// struct literal above stay readable. Accessors are no-ops once an error is
// recorded.
type fieldDecoder struct {
	shape string
	err   error
}

func (d *fieldDecoder) fail(field, format string, args ...any) {
	if d.err == nil {
		d.err = malformed(d.shape, field, format, args...)
	}
}

func (d *fieldDecoder) stringAt(raw []any, i int, field string) string {
	if d.err != nil {
		return ""
	}
	s, ok := raw[i].(string)
	if !ok {
		d.fail(field, "got %T, want string", raw[i])
		return ""
	}
	return s
}

func (d *fieldDecoder) boolAt(raw []any, i int, field string) bool {
	if d.err != nil {
		return false
	}
	b, ok := raw[i].(bool)
	if !ok {
		d.fail(field, "got %T, want bool", raw[i])
		return false
	}
	return b
}

func (d *fieldDecoder) addressAt(raw []any, i int, field string) domain.Address {
	if d.err != nil {
		return ""
	}
	s, ok := raw[i].(string)
	if !ok {
		d.fail(field, "got %T, want address string", raw[i])
		return ""
	}
	return domain.Address(s)
}

func (d *fieldDecoder) uint64At(raw []any, i int, field string) uint64 {
	if d.err != nil {
		return 0
	}
	n, err := toUint64(raw[i])
	if err != nil {
		d.fail(field, "%v", err)
		return 0
	}
	return n
}

func (d *fieldDecoder) int64At(raw []any, i int, field string) int64 {
	if d.err != nil {
		return 0
	}
	n, err := toInt64(raw[i])
	if err != nil {
		d.fail(field, "%v", err)
		return 0
	}
	return n
}

func (d *fieldDecoder) ordinalAt(raw []any, i int, field string) uint8 {
	if d.err != nil {
		return 0
	}
	n, err := toUint64(raw[i])
	if err != nil {
		d.fail(field, "%v", err)
		return 0
	}
	if n > math.MaxUint8 {
		d.fail(field, "ordinal %d out of range", n)
		return 0
	}
	return uint8(n)
}

func (d *fieldDecoder) stringSliceAt(raw []any, i int, field string) []string {
	if d.err != nil {
		return nil
	}
	switch v := raw[i].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				d.fail(field, "element is %T, want string", elem)
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		d.fail(field, "got %T, want string list", raw[i])
		return nil
	}
}

// toUint64 normalizes the integer representations the transports produce:
// native Go integers from the in-memory registry, json.Number from the
// JSON-RPC client.
func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d, want unsigned", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d, want unsigned", n)
		}
		return uint64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("non-integral number %q", n.String())
		}
		if i < 0 {
			return 0, fmt.Errorf("negative value %d, want unsigned", i)
		}
		return uint64(i), nil
	case float64:
		if n != math.Trunc(n) || n < 0 {
			return 0, fmt.Errorf("value %v is not a non-negative integer", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("got %T, want unsigned integer", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("non-integral number %q", n.String())
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("got %T, want integer", v)
	}
}
