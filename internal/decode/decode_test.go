package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalia/internal/domain"
)

func validListingRecord() []any {
	return []any{
		uint64(1), "0xA", "T", "D", "Biotech", true,
		uint64(0), "synth", "tg:@a", int64(1000), true, uint64(0),
		"0x0000000000000000000000000000000000000000",
	}
}

func TestListing(t *testing.T) {
	t.Run("decodes a well-formed record", func(t *testing.T) {
		listing, err := Listing(validListingRecord())
		require.NoError(t, err)

		assert.Equal(t, uint64(1), listing.ID)
		assert.Equal(t, domain.Address("0xA"), listing.Creator)
		assert.Equal(t, "T", listing.Title)
		assert.Equal(t, "D", listing.Description)
		assert.Equal(t, "Biotech", listing.Category)
		assert.True(t, listing.IsProject)
		assert.Equal(t, domain.ExpertiseSeeking, listing.ExpertiseType)
		assert.Equal(t, "synth", listing.Expertise)
		assert.Equal(t, "tg:@a", listing.ContactMethod)
		assert.Equal(t, int64(1000), listing.Timestamp)
		assert.True(t, listing.Active)
		assert.Equal(t, domain.StatusOpen, listing.Status)
		assert.True(t, listing.Responder.IsZero())
	})

	t.Run("rejects wrong arity", func(t *testing.T) {
		_, err := Listing(validListingRecord()[:12])
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("rejects wrong field type", func(t *testing.T) {
		raw := validListingRecord()
		raw[2] = 42 // title must be a string
		_, err := Listing(raw)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
		assert.Contains(t, err.Error(), "title")
	})

	t.Run("rejects out-of-range expertise ordinal", func(t *testing.T) {
		raw := validListingRecord()
		raw[6] = uint64(2)
		_, err := Listing(raw)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("rejects out-of-range status ordinal", func(t *testing.T) {
		raw := validListingRecord()
		raw[11] = uint64(4)
		_, err := Listing(raw)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("rejects Open listing with responder", func(t *testing.T) {
		raw := validListingRecord()
		raw[12] = "0xB"
		_, err := Listing(raw)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("accepts json.Number fields from the RPC transport", func(t *testing.T) {
		raw := validListingRecord()
		raw[0] = json.Number("7")
		raw[6] = json.Number("1")
		raw[9] = json.Number("1700000000")
		raw[11] = json.Number("1")
		raw[12] = "0xB"

		listing, err := Listing(raw)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), listing.ID)
		assert.Equal(t, domain.ExpertiseOffering, listing.ExpertiseType)
		assert.Equal(t, domain.StatusInProgress, listing.Status)
	})

	t.Run("rejects fractional numbers", func(t *testing.T) {
		raw := validListingRecord()
		raw[0] = 1.5
		_, err := Listing(raw)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})
}

func TestListings(t *testing.T) {
	good := validListingRecord()
	bad := validListingRecord()
	bad[11] = uint64(9)

	listings, failures := Listings([][]any{good, bad, good})

	assert.Len(t, listings, 2, "malformed element fails that element only")
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.True(t, IsMalformed(failures[0].Err))
}

func TestListingsStrict(t *testing.T) {
	good := validListingRecord()

	listings, err := ListingsStrict([][]any{good, good})
	require.NoError(t, err)
	assert.Len(t, listings, 2)

	bad := validListingRecord()
	bad[6] = uint64(3)
	_, err = ListingsStrict([][]any{good, bad})
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestProfile(t *testing.T) {
	raw := []any{
		true, "tg:@vita", false, "traveling until May", int64(1699999999),
		[]string{"biotech", "governance"}, "PhD", "hello",
	}

	profile, err := Profile(domain.Address("0xA"), raw)
	require.NoError(t, err)
	assert.Equal(t, domain.Address("0xA"), profile.Account)
	assert.True(t, profile.IsActive)
	assert.Equal(t, "tg:@vita", profile.ContactInfo)
	assert.False(t, profile.OnSiteStatus)
	assert.Equal(t, []string{"biotech", "governance"}, profile.ExpertiseAreas)
	assert.Equal(t, "PhD", profile.Credentials)
	assert.Equal(t, "hello", profile.Bio)

	t.Run("expertise areas from JSON arrive as []any", func(t *testing.T) {
		raw := []any{
			true, "c", true, "t", json.Number("5"),
			[]any{"a", "b"}, "cr", "b",
		}
		profile, err := Profile("0xA", raw)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, profile.ExpertiseAreas)
	})

	t.Run("rejects wrong arity", func(t *testing.T) {
		_, err := Profile("0xA", raw[:7])
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("rejects non-string expertise element", func(t *testing.T) {
		bad := []any{
			true, "c", true, "t", int64(5),
			[]any{"a", 7}, "cr", "b",
		}
		_, err := Profile("0xA", bad)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})
}

func TestStats(t *testing.T) {
	raw := []any{uint64(3), uint64(5), uint64(9), int64(1700000001)}

	stats, err := Stats("0xA", raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Completed)
	assert.Equal(t, uint64(5), stats.Created)
	assert.Equal(t, uint64(9), stats.Responses)
	assert.Equal(t, int64(1700000001), stats.LastActive)

	t.Run("rejects negative counters", func(t *testing.T) {
		_, err := Stats("0xA", []any{int64(-1), uint64(5), uint64(9), int64(0)})
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("rejects wrong arity", func(t *testing.T) {
		_, err := Stats("0xA", raw[:3])
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})
}
