package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vitalia/internal/chain"
	"vitalia/internal/decode"
	"vitalia/internal/domain"
	"vitalia/pkg/platform/sentinel"
)

const (
	listingsKeyPrefix = "listings:"
	categoriesKey     = "categories"
)

// ListingsResult is a decoded listing collection plus freshness metadata.
type ListingsResult struct {
	Listings  []domain.Listing
	FetchedAt time.Time
	Stale     bool
}

// Listings reads the listing collection selected by sel, serving cached data
// within the staleness window.
func (c *Client) Listings(ctx context.Context, sel chain.Selector) (ListingsResult, error) {
	got, err := c.get(ctx, sel.Key(), c.listingsFetcher(sel))
	if err != nil {
		return ListingsResult{}, err
	}
	return decodeListingsResult(got)
}

// RefetchListings bypasses the staleness window and reads through to the
// registry.
func (c *Client) RefetchListings(ctx context.Context, sel chain.Selector) (ListingsResult, error) {
	got, err := c.refetch(ctx, sel.Key(), c.listingsFetcher(sel))
	if err != nil {
		return ListingsResult{}, err
	}
	return decodeListingsResult(got)
}

// Listing finds a single listing by ID, checking active listings first and
// then each terminal status collection. Returns sentinel.ErrNotFound when no
// registry collection contains the ID.
func (c *Client) Listing(ctx context.Context, id uint64) (domain.Listing, error) {
	selectors := []chain.Selector{
		chain.AllActive(),
		chain.ByStatus(domain.StatusInProgress),
		chain.ByStatus(domain.StatusResolved),
		chain.ByStatus(domain.StatusExpired),
	}
	for _, sel := range selectors {
		result, err := c.Listings(ctx, sel)
		if err != nil {
			return domain.Listing{}, err
		}
		for _, l := range result.Listings {
			if l.ID == id {
				return l, nil
			}
		}
	}
	return domain.Listing{}, fmt.Errorf("listing %d: %w", id, sentinel.ErrNotFound)
}

// CategoriesResult is the registry category list plus freshness metadata.
type CategoriesResult struct {
	Categories []string
	FetchedAt  time.Time
	Stale      bool
}

// Categories reads the category list published by the listings registry.
func (c *Client) Categories(ctx context.Context) (CategoriesResult, error) {
	got, err := c.get(ctx, categoriesKey, c.categoriesFetcher())
	if err != nil {
		return CategoriesResult{}, err
	}
	var categories []string
	if err := json.Unmarshal(got.value, &categories); err != nil {
		return CategoriesResult{}, fmt.Errorf("decode cached categories: %w", err)
	}
	return CategoriesResult{Categories: categories, FetchedAt: got.fetchedAt, Stale: got.stale}, nil
}

// InvalidateListings marks every cached listing collection stale after a
// write touching listingID. Profile and stats entries are untouched.
func (c *Client) InvalidateListings(ctx context.Context, listingID uint64) {
	invalidations.WithLabelValues("listings").Inc()
	keys, err := c.store.Keys(ctx, listingsKeyPrefix)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "listing invalidation scan failed",
				"listing_id", listingID,
				"error", err,
			)
		}
		return
	}
	for _, key := range keys {
		c.invalidateKey(ctx, key)
	}
	if c.logger != nil {
		c.logger.DebugContext(ctx, "listing collections invalidated",
			"listing_id", listingID,
			"keys", len(keys),
		)
	}
}

func (c *Client) listingsFetcher(sel chain.Selector) fetchFn {
	return func(ctx context.Context) ([]byte, error) {
		records, err := c.adapter.ReadListings(ctx, sel)
		if err != nil {
			return nil, err
		}
		listings, failures := decode.Listings(records)
		if len(failures) > 0 && c.logger != nil {
			c.logger.WarnContext(ctx, "dropped malformed listing records",
				"key", sel.Key(),
				"dropped", len(failures),
				"first_error", failures[0].Err,
			)
		}
		return json.Marshal(listings)
	}
}

func (c *Client) categoriesFetcher() fetchFn {
	return func(ctx context.Context) ([]byte, error) {
		categories, err := c.adapter.Categories(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(categories)
	}
}

func decodeListingsResult(got cached) (ListingsResult, error) {
	var listings []domain.Listing
	if err := json.Unmarshal(got.value, &listings); err != nil {
		return ListingsResult{}, fmt.Errorf("decode cached listings: %w", err)
	}
	return ListingsResult{Listings: listings, FetchedAt: got.fetchedAt, Stale: got.stale}, nil
}
