package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and cache layers return
// these (optionally wrapped) so callers can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entry does not exist in the store
// - ErrConflict: a concurrent operation already holds the resource
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
