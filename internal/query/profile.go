package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"vitalia/internal/decode"
	"vitalia/internal/domain"
)

const (
	profileKeyPrefix   = "profile:"
	statsKeyPrefix     = "stats:"
	directoryKeyPrefix = "profiles:"
)

// ProfileKey is the cache key for an account's profile record.
func ProfileKey(account domain.Address) string {
	return profileKeyPrefix + string(account)
}

// StatsKey is the cache key for an account's activity stats record.
func StatsKey(account domain.Address) string {
	return statsKeyPrefix + string(account)
}

// ProfileResult is the composed profile view: the profile record and the
// activity stats record, fetched in parallel. Profile is nil when the account
// has no active profile on the registry; Stats is always populated because the
// registry returns zeroed stats for unknown accounts.
type ProfileResult struct {
	Profile   *domain.Profile
	Stats     domain.Stats
	FetchedAt time.Time
	Stale     bool
}

// Profile reads an account's profile and stats as one composed query. The two
// registry reads run in parallel and are cached independently, so a stats
// invalidation does not force a profile refetch.
func (c *Client) Profile(ctx context.Context, account domain.Address) (ProfileResult, error) {
	var profileGot, statsGot cached

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profileGot, err = c.get(gctx, ProfileKey(account), c.profileFetcher(account))
		return err
	})
	g.Go(func() error {
		var err error
		statsGot, err = c.get(gctx, StatsKey(account), c.statsFetcher(account))
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfileResult{}, err
	}

	return composeProfileResult(profileGot, statsGot)
}

// RefetchProfile bypasses the staleness window for both halves of the
// composed profile view.
func (c *Client) RefetchProfile(ctx context.Context, account domain.Address) (ProfileResult, error) {
	var profileGot, statsGot cached

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profileGot, err = c.refetch(gctx, ProfileKey(account), c.profileFetcher(account))
		return err
	})
	g.Go(func() error {
		var err error
		statsGot, err = c.refetch(gctx, StatsKey(account), c.statsFetcher(account))
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfileResult{}, err
	}

	return composeProfileResult(profileGot, statsGot)
}

// DirectoryResult is a set of accounts from a profile directory read.
type DirectoryResult struct {
	Accounts  []domain.Address
	FetchedAt time.Time
	Stale     bool
}

// ProfilesByExpertise lists accounts advertising an expertise tag.
func (c *Client) ProfilesByExpertise(ctx context.Context, tag string) (DirectoryResult, error) {
	key := directoryKeyPrefix + "expertise:" + tag
	got, err := c.get(ctx, key, func(ctx context.Context) ([]byte, error) {
		accounts, err := c.adapter.ProfilesByExpertise(ctx, tag)
		if err != nil {
			return nil, err
		}
		return json.Marshal(accounts)
	})
	if err != nil {
		return DirectoryResult{}, err
	}
	return decodeDirectoryResult(got)
}

// ActiveProfiles lists every account with an active profile.
func (c *Client) ActiveProfiles(ctx context.Context) (DirectoryResult, error) {
	got, err := c.get(ctx, directoryKeyPrefix+"all", func(ctx context.Context) ([]byte, error) {
		accounts, err := c.adapter.ActiveProfiles(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(accounts)
	})
	if err != nil {
		return DirectoryResult{}, err
	}
	return decodeDirectoryResult(got)
}

// ProfilesByOnSiteStatus lists accounts filtered by on-site presence.
func (c *Client) ProfilesByOnSiteStatus(ctx context.Context, onSite bool) (DirectoryResult, error) {
	key := fmt.Sprintf("%sonsite:%t", directoryKeyPrefix, onSite)
	got, err := c.get(ctx, key, func(ctx context.Context) ([]byte, error) {
		accounts, err := c.adapter.ProfilesByOnSiteStatus(ctx, onSite)
		if err != nil {
			return nil, err
		}
		return json.Marshal(accounts)
	})
	if err != nil {
		return DirectoryResult{}, err
	}
	return decodeDirectoryResult(got)
}

// InvalidateAccount marks an account's profile and stats entries stale, plus
// the profile directory collections the change may have reordered. Listing
// collections are untouched.
func (c *Client) InvalidateAccount(ctx context.Context, account domain.Address) {
	invalidations.WithLabelValues("account").Inc()

	c.invalidateKey(ctx, ProfileKey(account))
	c.invalidateKey(ctx, StatsKey(account))

	keys, err := c.store.Keys(ctx, directoryKeyPrefix)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "directory invalidation scan failed",
				"account", account,
				"error", err,
			)
		}
		return
	}
	for _, key := range keys {
		c.invalidateKey(ctx, key)
	}
}

func (c *Client) profileFetcher(account domain.Address) fetchFn {
	return func(ctx context.Context) ([]byte, error) {
		record, err := c.adapter.ReadProfile(ctx, account)
		if err != nil {
			return nil, err
		}
		profile, err := decode.Profile(account, record)
		if err != nil {
			return nil, err
		}
		return json.Marshal(profile)
	}
}

func (c *Client) statsFetcher(account domain.Address) fetchFn {
	return func(ctx context.Context) ([]byte, error) {
		record, err := c.adapter.ReadStats(ctx, account)
		if err != nil {
			return nil, err
		}
		stats, err := decode.Stats(account, record)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	}
}

func composeProfileResult(profileGot, statsGot cached) (ProfileResult, error) {
	var profile domain.Profile
	if err := json.Unmarshal(profileGot.value, &profile); err != nil {
		return ProfileResult{}, fmt.Errorf("decode cached profile: %w", err)
	}
	var stats domain.Stats
	if err := json.Unmarshal(statsGot.value, &stats); err != nil {
		return ProfileResult{}, fmt.Errorf("decode cached stats: %w", err)
	}

	result := ProfileResult{
		Stats:     stats,
		FetchedAt: profileGot.fetchedAt,
		Stale:     profileGot.stale || statsGot.stale,
	}
	// The registry hands back a zeroed record for accounts that never
	// registered; surface that as no profile rather than an empty one.
	if profile.IsActive {
		p := profile
		result.Profile = &p
	}
	if statsGot.fetchedAt.Before(result.FetchedAt) {
		result.FetchedAt = statsGot.fetchedAt
	}
	return result, nil
}

func decodeDirectoryResult(got cached) (DirectoryResult, error) {
	var accounts []domain.Address
	if err := json.Unmarshal(got.value, &accounts); err != nil {
		return DirectoryResult{}, fmt.Errorf("decode cached directory: %w", err)
	}
	return DirectoryResult{Accounts: accounts, FetchedAt: got.fetchedAt, Stale: got.stale}, nil
}
