// Package chain is the contract client adapter: it translates domain-level
// read and write intents into positional calls against the listing and
// profile registries, using the addresses for the configured network. It
// holds no business logic and returns raw records for the decoder.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vitalia/internal/domain"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalia_chain_calls_total",
		Help: "Total registry calls issued through the adapter",
	}, []string{"contract", "method", "kind"})

	callErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalia_chain_call_errors_total",
		Help: "Registry calls that failed, by error category",
	}, []string{"contract", "method", "category"})

	callDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vitalia_chain_call_duration_seconds",
		Help:    "Latency of registry calls",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
)

// Listing registry method names.
const (
	methodGetActiveListings      = "getActiveListings"
	methodGetListingsByStatus    = "getListingsByStatus"
	methodGetListingsByExpertise = "getListingsByExpertise"
	methodGetCategories          = "getCategories"
	methodCreateListing          = "createListing"
	methodRespondToListing       = "respondToListing"
	methodMarkResolved           = "markResolved"
)

// Profile registry method names.
const (
	methodGetProfile                = "getProfile"
	methodGetUserStats              = "getUserStats"
	methodGetProfilesByExpertise    = "getProfilesByExpertise"
	methodGetAllActiveProfiles      = "getAllActiveProfiles"
	methodGetProfilesByOnSiteStatus = "getProfilesByOnSiteStatus"
	methodCreateProfile             = "createProfile"
	methodUpdateProfile             = "updateProfile"
	methodDeactivateProfile         = "deactivateProfile"
)

// Contracts is the per-network address book, injected at construction.
type Contracts struct {
	Connect  ContractRef
	Profiles ContractRef
}

// CreateListingParams are the fields of a listing creation intent. The
// adapter encodes ExpertiseType to its registry ordinal.
type CreateListingParams struct {
	Title         string
	Description   string
	Category      string
	IsProject     bool
	ExpertiseType domain.ExpertiseType
	Expertise     string
	ContactMethod string
}

// ProfileParams are the fields shared by profile creation and update.
type ProfileParams struct {
	ContactInfo    string
	OnSiteStatus   bool
	TravelDetails  string
	ExpertiseAreas []string
	Credentials    string
	Bio            string
}

// Client is the typed adapter over a Transport.
type Client struct {
	transport Transport
	contracts Contracts
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a structured logger for call-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds an adapter bound to the given transport and address book.
func NewClient(transport Transport, contracts Contracts, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if contracts.Connect.Address.IsZero() || contracts.Profiles.Address.IsZero() {
		return nil, errors.New("contract addresses are required")
	}
	c := &Client{transport: transport, contracts: contracts}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ReadListings issues the registry read chosen by the selector and returns
// the raw positional records. Creator or responder narrowing is not a
// selector: it is client-side filtering over the broadest available read.
func (c *Client) ReadListings(ctx context.Context, sel Selector) ([][]any, error) {
	var (
		method string
		args   []any
	)
	switch sel.Kind {
	case SelectByStatus:
		method = methodGetListingsByStatus
		args = []any{uint64(sel.Status.Ordinal())}
	case SelectByExpertise:
		method = methodGetListingsByExpertise
		args = []any{sel.Expertise}
	default:
		method = methodGetActiveListings
	}

	result, err := c.call(ctx, c.contracts.Connect, method, args...)
	if err != nil {
		return nil, err
	}
	return coerceRecords(c.contracts.Connect, method, result)
}

// Categories returns the registry's category list.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	result, err := c.call(ctx, c.contracts.Connect, methodGetCategories)
	if err != nil {
		return nil, err
	}
	return coerceStrings(c.contracts.Connect, methodGetCategories, result)
}

// ReadProfile returns the raw 8-field profile record for an account.
func (c *Client) ReadProfile(ctx context.Context, account domain.Address) ([]any, error) {
	return c.call(ctx, c.contracts.Profiles, methodGetProfile, account.String())
}

// ReadStats returns the raw 4-field stats record for an account.
func (c *Client) ReadStats(ctx context.Context, account domain.Address) ([]any, error) {
	return c.call(ctx, c.contracts.Profiles, methodGetUserStats, account.String())
}

// ProfilesByExpertise returns the accounts registered under an expertise tag.
func (c *Client) ProfilesByExpertise(ctx context.Context, tag string) ([]domain.Address, error) {
	result, err := c.call(ctx, c.contracts.Profiles, methodGetProfilesByExpertise, tag)
	if err != nil {
		return nil, err
	}
	return coerceAddresses(c.contracts.Profiles, methodGetProfilesByExpertise, result)
}

// ActiveProfiles returns all accounts with an active profile.
func (c *Client) ActiveProfiles(ctx context.Context) ([]domain.Address, error) {
	result, err := c.call(ctx, c.contracts.Profiles, methodGetAllActiveProfiles)
	if err != nil {
		return nil, err
	}
	return coerceAddresses(c.contracts.Profiles, methodGetAllActiveProfiles, result)
}

// ProfilesByOnSiteStatus returns accounts filtered by on-site presence.
func (c *Client) ProfilesByOnSiteStatus(ctx context.Context, onSite bool) ([]domain.Address, error) {
	result, err := c.call(ctx, c.contracts.Profiles, methodGetProfilesByOnSiteStatus, onSite)
	if err != nil {
		return nil, err
	}
	return coerceAddresses(c.contracts.Profiles, methodGetProfilesByOnSiteStatus, result)
}

// SubmitCreateListing hands a listing creation to the chain.
func (c *Client) SubmitCreateListing(ctx context.Context, p CreateListingParams) (TxHandle, error) {
	return c.submit(ctx, c.contracts.Connect, methodCreateListing,
		p.Title, p.Description, p.Category, p.IsProject,
		uint64(p.ExpertiseType.Ordinal()), p.Expertise, p.ContactMethod)
}

// SubmitRespond hands a respond-to-listing write to the chain.
func (c *Client) SubmitRespond(ctx context.Context, listingID uint64) (TxHandle, error) {
	return c.submit(ctx, c.contracts.Connect, methodRespondToListing, listingID)
}

// SubmitMarkResolved hands a mark-resolved write to the chain.
func (c *Client) SubmitMarkResolved(ctx context.Context, listingID uint64) (TxHandle, error) {
	return c.submit(ctx, c.contracts.Connect, methodMarkResolved, listingID)
}

// SubmitCreateProfile hands a profile creation to the chain.
func (c *Client) SubmitCreateProfile(ctx context.Context, p ProfileParams) (TxHandle, error) {
	return c.submit(ctx, c.contracts.Profiles, methodCreateProfile,
		p.ContactInfo, p.OnSiteStatus, p.TravelDetails,
		p.ExpertiseAreas, p.Credentials, p.Bio)
}

// SubmitUpdateProfile hands a profile update to the chain.
func (c *Client) SubmitUpdateProfile(ctx context.Context, p ProfileParams) (TxHandle, error) {
	return c.submit(ctx, c.contracts.Profiles, methodUpdateProfile,
		p.ContactInfo, p.OnSiteStatus, p.TravelDetails,
		p.ExpertiseAreas, p.Credentials, p.Bio)
}

// SubmitDeactivateProfile hands a profile deactivation to the chain. The
// acting account is the transaction sender; no argument is needed.
func (c *Client) SubmitDeactivateProfile(ctx context.Context) (TxHandle, error) {
	return c.submit(ctx, c.contracts.Profiles, methodDeactivateProfile)
}

// Wait blocks until the write behind the handle reaches a terminal receipt.
func (c *Client) Wait(ctx context.Context, handle TxHandle) (Receipt, error) {
	receipt, err := c.transport.Wait(ctx, handle)
	if err != nil {
		return Receipt{}, normalizeErr("", "wait", err)
	}
	return receipt, nil
}

func (c *Client) call(ctx context.Context, contract ContractRef, method string, args ...any) ([]any, error) {
	start := time.Now()
	callsTotal.WithLabelValues(contract.Name, method, "read").Inc()

	result, err := c.transport.Call(ctx, contract, method, args...)
	callDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		err = normalizeErr(contract.Name, method, err)
		callErrors.WithLabelValues(contract.Name, method, string(CategoryOf(err))).Inc()
		if c.logger != nil {
			c.logger.DebugContext(ctx, "registry read failed",
				"contract", contract.Name,
				"method", method,
				"error", err,
			)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) submit(ctx context.Context, contract ContractRef, method string, args ...any) (TxHandle, error) {
	callsTotal.WithLabelValues(contract.Name, method, "write").Inc()

	handle, err := c.transport.Submit(ctx, contract, method, args...)
	if err != nil {
		err = normalizeErr(contract.Name, method, err)
		callErrors.WithLabelValues(contract.Name, method, string(CategoryOf(err))).Inc()
		return "", err
	}
	if c.logger != nil {
		c.logger.DebugContext(ctx, "write submitted",
			"contract", contract.Name,
			"method", method,
			"handle", string(handle),
		)
	}
	return handle, nil
}

// normalizeErr guarantees every error leaving the adapter carries a category.
func normalizeErr(contract, method string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return NewError(CategoryTransport, contract, method, "registry call failed", err)
}

func coerceRecords(contract ContractRef, method string, result []any) ([][]any, error) {
	records := make([][]any, 0, len(result))
	for i, elem := range result {
		record, ok := elem.([]any)
		if !ok {
			return nil, NewError(CategoryTransport, contract.Name, method,
				fmt.Sprintf("element %d is %T, want positional record", i, elem), nil)
		}
		records = append(records, record)
	}
	return records, nil
}

func coerceStrings(contract ContractRef, method string, result []any) ([]string, error) {
	out := make([]string, 0, len(result))
	for i, elem := range result {
		s, ok := elem.(string)
		if !ok {
			return nil, NewError(CategoryTransport, contract.Name, method,
				fmt.Sprintf("element %d is %T, want string", i, elem), nil)
		}
		out = append(out, s)
	}
	return out, nil
}

func coerceAddresses(contract ContractRef, method string, result []any) ([]domain.Address, error) {
	strs, err := coerceStrings(contract, method, result)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(strs))
	for _, s := range strs {
		out = append(out, domain.Address(s))
	}
	return out, nil
}
