package httptransport_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalia/internal/chain"
	"vitalia/internal/chain/registrytest"
	"vitalia/internal/domain"
	"vitalia/internal/listings"
	"vitalia/internal/oplog"
	"vitalia/internal/profiles"
	"vitalia/internal/query"
	"vitalia/internal/query/store"
	httptransport "vitalia/internal/transport/http"
	"vitalia/internal/txtrack"
	"vitalia/pkg/testutil"
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
	router   http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	registry := registrytest.New(alice)
	adapter, err := chain.NewClient(registry, testContracts)
	require.NoError(t, err)
	queries, err := query.NewClient(adapter, store.NewMemoryStore())
	require.NoError(t, err)

	journalStore := oplog.NewMemoryStore()
	journal := oplog.NewPublisher(journalStore)
	tracker, err := txtrack.New(adapter, txtrack.WithJournal(journal))
	require.NoError(t, err)

	listingSvc, err := listings.NewService(adapter, queries, tracker)
	require.NoError(t, err)
	profileSvc, err := profiles.NewService(adapter, queries, tracker)
	require.NoError(t, err)

	handler := httptransport.NewHandler(listingSvc, profileSvc, journal)
	return &harness{
		registry: registry,
		queries:  queries,
		tracker:  tracker,
		router:   httptransport.NewRouter(handler),
	}
}

func (h *harness) settle() {
	h.tracker.Drain()
	h.queries.Drain()
}

func seedOpenListing(h *harness, id uint64, creator domain.Address) {
	h.registry.Seed(domain.Listing{
		ID:            id,
		Creator:       creator,
		Title:         "Microbiome pilot",
		Description:   "Recruiting for a stool sequencing pilot",
		Category:      "Longevity Research",
		ExpertiseType: domain.ExpertiseSeeking,
		Expertise:     "bioinformatics",
		ContactMethod: "tg:@someone",
		Timestamp:     int64(2000 + id),
		Active:        true,
		Status:        domain.StatusOpen,
		Responder:     domain.ZeroAddress,
	})
}

type listingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Meta     struct {
		Stale bool `json:"stale"`
	} `json:"meta"`
}

type acceptedResponse struct {
	OperationID uuid.UUID `json:"operation_id"`
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestBrowseListings(t *testing.T) {
	h := newHarness(t)
	seedOpenListing(h, 1, alice)
	seedOpenListing(h, 2, bob)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings?sort=oldest"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[listingsResponse](t, rr)
	require.Len(t, resp.Listings, 2)
	assert.Equal(t, uint64(1), resp.Listings[0].ID)
	assert.False(t, resp.Meta.Stale)
}

func TestBrowseListingsRejectsBadParams(t *testing.T) {
	h := newHarness(t)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings?status=Bogus"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "bad_request")

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings?sort=trending"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestGetListing(t *testing.T) {
	h := newHarness(t)
	seedOpenListing(h, 7, alice)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings/7"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	listing := testutil.UnmarshalResponse[domain.Listing](t, rr)
	assert.Equal(t, "Microbiome pilot", listing.Title)

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings/99"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings/abc"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/categories"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[struct {
		Categories []string `json:"categories"`
	}](t, rr)
	assert.Contains(t, resp.Categories, "Biohacking")
}

func TestCreateListingAcceptedAndTracked(t *testing.T) {
	h := newHarness(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/listings", map[string]any{
		"title":          "Sauna protocol data",
		"description":    "Need HRV analysis of sauna sessions",
		"category":       "Biohacking",
		"is_project":     false,
		"expertise_type": "SEEKING",
		"expertise":      "data analysis",
		"contact_method": "tg:@alice",
	})
	rr := testutil.DoRequest(h.router, req)
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	accepted := testutil.UnmarshalResponse[acceptedResponse](t, rr)
	require.NotEqual(t, uuid.Nil, accepted.OperationID)

	h.settle()

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/operations/"+accepted.OperationID.String()))
	testutil.AssertStatus(t, rr, http.StatusOK)
	op := testutil.UnmarshalResponse[struct {
		Status string `json:"status"`
		Kind   string `json:"kind"`
	}](t, rr)
	assert.Equal(t, "confirmed", op.Status)
	assert.Equal(t, "createListing", op.Kind)
}

func TestCreateListingValidation(t *testing.T) {
	h := newHarness(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/listings", map[string]any{
		"description":    "missing everything else",
		"category":       "Biohacking",
		"expertise_type": "SEEKING",
	})
	rr := testutil.DoRequest(h.router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "invalid_input")

	req = testutil.NewJSONRequest(t, http.MethodPost, "/api/listings", map[string]any{"unknown_field": true})
	rr = testutil.DoRequest(h.router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestRespondFlow(t *testing.T) {
	h := newHarness(t)
	seedOpenListing(h, 1, alice)
	h.registry.SetSender(bob)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodPost, "/api/listings/1/respond"))
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	h.settle()

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings/1"))
	listing := testutil.UnmarshalResponse[domain.Listing](t, rr)
	assert.Equal(t, domain.StatusInProgress, listing.Status)
	assert.Equal(t, bob, listing.Responder)
}

func TestRespondConflictOnNonOpenListing(t *testing.T) {
	h := newHarness(t)
	h.registry.Seed(domain.Listing{
		ID: 1, Creator: alice, Title: "t", Description: "d", Category: "Biotech",
		ExpertiseType: domain.ExpertiseSeeking, Expertise: "x", ContactMethod: "c",
		Timestamp: 1, Active: true, Status: domain.StatusInProgress, Responder: bob,
	})

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodPost, "/api/listings/1/respond"))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertErrorCode(t, rr, "conflict")
}

func TestProfileLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{
		"contact_info":    "tg:@alice",
		"on_site_status":  true,
		"travel_details":  "on site",
		"expertise_areas": []string{"biostatistics"},
		"bio":             "researcher",
	}

	rr := testutil.DoRequest(h.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/profiles/"+string(alice), body))
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	h.settle()

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/profiles/"+string(alice)))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[struct {
		Profile *domain.Profile `json:"profile"`
	}](t, rr)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "tg:@alice", resp.Profile.ContactInfo)

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodDelete, "/api/profiles/"+string(alice)))
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	h.settle()

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/profiles/"+string(alice)))
	resp = testutil.UnmarshalResponse[struct {
		Profile *domain.Profile `json:"profile"`
	}](t, rr)
	assert.Nil(t, resp.Profile)
}

func TestProfileDirectoryOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.registry.SeedProfile(domain.Profile{
		Account: alice, IsActive: true, OnSiteStatus: true, ExpertiseAreas: []string{"governance"},
	}, domain.Stats{})

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/profiles?expertise=governance"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[struct {
		Accounts []domain.Address `json:"accounts"`
	}](t, rr)
	assert.Equal(t, []domain.Address{alice}, resp.Accounts)
}

func TestOperationJournalOverHTTP(t *testing.T) {
	h := newHarness(t)
	seedOpenListing(h, 1, alice)
	h.registry.SetSender(bob)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodPost, "/api/listings/1/respond"))
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	h.settle()

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/operations?target=listing:1"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[struct {
		Events []struct {
			Status string `json:"status"`
		} `json:"events"`
	}](t, rr)
	require.Len(t, resp.Events, 3)
	assert.Equal(t, "confirmed", resp.Events[2].Status)
}

func TestUnknownOperationIs404(t *testing.T) {
	h := newHarness(t)

	rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/operations/"+uuid.NewString()))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/operations/not-a-uuid"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestResolveScenario(t *testing.T) {
	testutil.Given(t, "a listing with a responder", func(t *testing.T) {
		h := newHarness(t)
		h.registry.Seed(domain.Listing{
			ID: 1, Creator: alice, Title: "t", Description: "d", Category: "Biotech",
			ExpertiseType: domain.ExpertiseSeeking, Expertise: "x", ContactMethod: "c",
			Timestamp: 1, Active: true, Status: domain.StatusInProgress, Responder: bob,
		})

		testutil.When(t, "the creator marks it resolved", func(t *testing.T) {
			rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodPost, "/api/listings/1/resolve"))
			testutil.AssertStatus(t, rr, http.StatusAccepted)
			h.settle()

			testutil.Then(t, "the listing reads back resolved", func(t *testing.T) {
				rr := testutil.DoRequest(h.router, testutil.NewRequest(t, http.MethodGet, "/api/listings/1"))
				testutil.AssertStatus(t, rr, http.StatusOK)
				listing := testutil.UnmarshalResponse[domain.Listing](t, rr)
				assert.Equal(t, domain.StatusResolved, listing.Status)
			})
		})
	})
}
