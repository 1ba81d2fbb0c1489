package profiles_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalia/internal/chain"
	"vitalia/internal/chain/registrytest"
	"vitalia/internal/domain"
	"vitalia/internal/profiles"
	"vitalia/internal/query"
	"vitalia/internal/query/store"
	"vitalia/internal/txtrack"
	domainerrors "vitalia/pkg/domain-errors"
	"vitalia/pkg/platform/sentinel"
)

var testContracts = chain.Contracts{
	Connect:  chain.ContractRef{Name: "VitaliaConnect", Address: "0x04F94A2fCaAA6Ce147C99F34620fcfbA609d4906"},
	Profiles: chain.ContractRef{Name: "VitaliaProfiles", Address: "0xaccFC127f32d2dA14f05F5C373Ba2d0aF0152D33"},
}

const (
	alice = domain.Address("0xaaaa000000000000000000000000000000000001")
	bob   = domain.Address("0xbbbb000000000000000000000000000000000002")
)

type harness struct {
	registry *registrytest.Registry
	queries  *query.Client
	tracker  *txtrack.Tracker
	service  *profiles.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	registry := registrytest.New(alice)
	adapter, err := chain.NewClient(registry, testContracts)
	require.NoError(t, err)
	queries, err := query.NewClient(adapter, store.NewMemoryStore())
	require.NoError(t, err)
	tracker, err := txtrack.New(adapter)
	require.NoError(t, err)
	service, err := profiles.NewService(adapter, queries, tracker)
	require.NoError(t, err)

	return &harness{registry: registry, queries: queries, tracker: tracker, service: service}
}

func (h *harness) settle() {
	h.tracker.Drain()
	h.queries.Drain()
}

func validParams() chain.ProfileParams {
	return chain.ProfileParams{
		ContactInfo:    "tg:@alice",
		OnSiteStatus:   true,
		TravelDetails:  "on site until June",
		ExpertiseAreas: []string{"biostatistics", " biostatistics ", "clinical ops"},
		Credentials:    "PhD, biostatistics",
		Bio:            "CGM researcher",
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	p := validParams()
	p.ContactInfo = ""
	_, err := h.service.Create(context.Background(), alice, p)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidInput))

	p = validParams()
	p.ExpertiseAreas = []string{"  ", ""}
	_, err = h.service.Create(context.Background(), alice, p)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidInput), "blank tags dedupe to nothing")

	_, err = h.service.Create(context.Background(), domain.ZeroAddress, validParams())
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidInput))

	assert.Zero(t, h.registry.CallCount("createProfile"))
}

func TestCreateDedupesExpertiseAndConfirms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	opID, err := h.service.Create(ctx, alice, validParams())
	require.NoError(t, err)
	h.settle()

	op, ok := h.service.OperationStatus(opID)
	require.True(t, ok)
	assert.Equal(t, txtrack.StatusConfirmed, op.Status)

	result, err := h.service.Get(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, result.Profile)
	assert.Equal(t, []string{"biostatistics", "clinical ops"}, result.Profile.ExpertiseAreas)
}

func TestUpdateRefreshesCachedProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registry.SeedProfile(domain.Profile{
		Account:        alice,
		IsActive:       true,
		ContactInfo:    "tg:@alice",
		ExpertiseAreas: []string{"biostatistics"},
	}, domain.Stats{})

	// Warm the cache before the write.
	before, err := h.service.Get(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, before.Profile)

	p := validParams()
	p.ContactInfo = "tg:@alice_new"
	_, err = h.service.Update(ctx, alice, p)
	require.NoError(t, err)
	h.settle()

	after, err := h.service.Get(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, after.Profile)
	assert.Equal(t, "tg:@alice_new", after.Profile.ContactInfo)
	assert.False(t, after.Stale, "confirmed write refreshed the profile in the background")
}

func TestUpdateWithoutProfileReverts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	opID, err := h.service.Update(ctx, alice, validParams())
	require.NoError(t, err)
	h.settle()

	op, ok := h.service.OperationStatus(opID)
	require.True(t, ok)
	assert.Equal(t, txtrack.StatusFailed, op.Status)
	assert.Equal(t, "no active profile to update", op.Reason)
}

func TestDeactivateHidesProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registry.SeedProfile(domain.Profile{
		Account:        alice,
		IsActive:       true,
		ContactInfo:    "tg:@alice",
		ExpertiseAreas: []string{"biostatistics"},
	}, domain.Stats{})

	_, err := h.service.Get(ctx, alice)
	require.NoError(t, err)

	_, err = h.service.Deactivate(ctx, alice)
	require.NoError(t, err)
	h.settle()

	result, err := h.service.Get(ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, result.Profile, "deactivated profiles read as absent")
}

func TestConcurrentWritesToSameProfileAreRejected(t *testing.T) {
	h := newHarness(t)
	h.registry.Latency = 50 * time.Millisecond // keeps the first write in flight

	_, err := h.service.Create(context.Background(), alice, validParams())
	require.NoError(t, err)

	_, err = h.service.Update(context.Background(), alice, validParams())
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// A different account is free to write.
	h.registry.SetSender(bob)
	_, err = h.service.Create(context.Background(), bob, validParams())
	require.NoError(t, err)

	h.settle()
}

func TestDirectoryReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registry.SeedProfile(domain.Profile{
		Account:        alice,
		IsActive:       true,
		OnSiteStatus:   true,
		ExpertiseAreas: []string{"biostatistics"},
	}, domain.Stats{})
	h.registry.SeedProfile(domain.Profile{
		Account:        bob,
		IsActive:       true,
		OnSiteStatus:   false,
		ExpertiseAreas: []string{"governance"},
	}, domain.Stats{})

	byTag, err := h.service.ByExpertise(ctx, "governance")
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{bob}, byTag.Accounts)

	onSite, err := h.service.ByOnSiteStatus(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{alice}, onSite.Accounts)

	active, err := h.service.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active.Accounts, 2)
}
