// Package registrytest provides a deterministic in-memory implementation of
// the chain transport with full listing and profile registry semantics. Tests
// use it to drive the data layer end to end; cmd/server falls back to it when
// no RPC endpoint is configured.
package registrytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
)

type pendingTx struct {
	contract chain.ContractRef
	method   string
	args     []any
	receipt  *chain.Receipt // set once applied
}

// Registry is an in-memory stand-in for both registries behind one transport.
// A configurable latency mimics real-world call behavior.
type Registry struct {
	mu      sync.Mutex
	Latency time.Duration

	sender   domain.Address
	now      func() int64
	nextID   uint64
	listings map[uint64]domain.Listing
	profiles map[domain.Address]domain.Profile
	stats    map[domain.Address]domain.Stats

	pending    map[chain.TxHandle]*pendingTx
	rejectNext string
	failCalls  map[string]error
	callCounts map[string]int
}

// New creates an empty fake registry acting as the given sender account.
func New(sender domain.Address) *Registry {
	return &Registry{
		sender:     sender,
		now:        func() int64 { return time.Now().Unix() },
		nextID:     1,
		listings:   make(map[uint64]domain.Listing),
		profiles:   make(map[domain.Address]domain.Profile),
		stats:      make(map[domain.Address]domain.Stats),
		pending:    make(map[chain.TxHandle]*pendingTx),
		failCalls:  make(map[string]error),
		callCounts: make(map[string]int),
	}
}

// SetNow overrides the clock used for assigned timestamps.
func (r *Registry) SetNow(now func() int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetSender switches the acting account for subsequent submits.
func (r *Registry) SetSender(sender domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = sender
}

// Seed inserts a listing directly, bypassing transaction semantics.
func (r *Registry) Seed(listing domain.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if listing.ID >= r.nextID {
		r.nextID = listing.ID + 1
	}
	r.listings[listing.ID] = listing
}

// SeedProfile inserts a profile directly, bypassing transaction semantics.
func (r *Registry) SeedProfile(profile domain.Profile, stats domain.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.Account] = profile
	stats.Account = profile.Account
	r.stats[profile.Account] = stats
}

// FailCalls makes reads of the given method fail until cleared with a nil err.
func (r *Registry) FailCalls(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failCalls, method)
		return
	}
	r.failCalls[method] = err
}

// RejectNextSubmit makes the next Submit fail before broadcast with the given
// reason, mimicking a declined wallet prompt.
func (r *Registry) RejectNextSubmit(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectNext = reason
}

// CallCount reports how many transport calls were issued for a method. Tests
// use it to assert read coalescing.
func (r *Registry) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callCounts[method]
}

// Call implements chain.Transport.
func (r *Registry) Call(ctx context.Context, contract chain.ContractRef, method string, args ...any) ([]any, error) {
	if err := r.sleep(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callCounts[method]++
	if err := r.failCalls[method]; err != nil {
		return nil, chain.NewError(chain.CategoryTransport, contract.Name, method, "injected failure", err)
	}

	switch method {
	case "getActiveListings":
		return r.listingRecords(func(l domain.Listing) bool { return l.Active }), nil
	case "getListingsByStatus":
		ord, err := argUint(args, 0)
		if err != nil {
			return nil, err
		}
		status, err := domain.ListingStatusFromOrdinal(uint8(ord))
		if err != nil {
			return nil, chain.NewError(chain.CategoryTransport, contract.Name, method, "bad status ordinal", err)
		}
		return r.listingRecords(func(l domain.Listing) bool { return l.Status == status }), nil
	case "getListingsByExpertise":
		tag, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return r.listingRecords(func(l domain.Listing) bool { return l.Expertise == tag }), nil
	case "getCategories":
		out := make([]any, 0, len(domain.Categories))
		for _, c := range domain.Categories {
			out = append(out, c)
		}
		return out, nil
	case "getProfile":
		account, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return profileRecord(r.profiles[domain.Address(account)]), nil
	case "getUserStats":
		account, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return statsRecord(r.stats[domain.Address(account)]), nil
	case "getProfilesByExpertise":
		tag, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return r.profileAccounts(func(p domain.Profile) bool {
			for _, area := range p.ExpertiseAreas {
				if area == tag {
					return true
				}
			}
			return false
		}), nil
	case "getAllActiveProfiles":
		return r.profileAccounts(func(domain.Profile) bool { return true }), nil
	case "getProfilesByOnSiteStatus":
		onSite, err := argBool(args, 0)
		if err != nil {
			return nil, err
		}
		return r.profileAccounts(func(p domain.Profile) bool { return p.OnSiteStatus == onSite }), nil
	default:
		return nil, chain.NewError(chain.CategoryTransport, contract.Name, method, "unknown read method", nil)
	}
}

// Submit implements chain.Transport. The write is applied when its receipt is
// observed via Wait, so submission order and confirmation order can differ in
// tests just as they do on chain.
func (r *Registry) Submit(ctx context.Context, contract chain.ContractRef, method string, args ...any) (chain.TxHandle, error) {
	if err := r.sleep(ctx); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callCounts[method]++
	if r.rejectNext != "" {
		reason := r.rejectNext
		r.rejectNext = ""
		return "", chain.NewError(chain.CategoryRejected, contract.Name, method, reason, nil)
	}

	handle := chain.TxHandle(uuid.NewString())
	r.pending[handle] = &pendingTx{contract: contract, method: method, args: args}
	return handle, nil
}

// Wait implements chain.Transport. The first observer applies the write; the
// receipt is memoized for any later observer of the same handle.
func (r *Registry) Wait(ctx context.Context, handle chain.TxHandle) (chain.Receipt, error) {
	if err := r.sleep(ctx); err != nil {
		return chain.Receipt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.pending[handle]
	if !ok {
		return chain.Receipt{}, chain.NewError(chain.CategoryTransport, "", "wait", "unknown tx handle", nil)
	}
	if tx.receipt == nil {
		receipt := r.apply(tx, handle)
		tx.receipt = &receipt
	}
	return *tx.receipt, nil
}

func (r *Registry) apply(tx *pendingTx, handle chain.TxHandle) chain.Receipt {
	confirmed := chain.Receipt{Handle: handle, Status: chain.ReceiptConfirmed}
	revert := func(reason string) chain.Receipt {
		return chain.Receipt{Handle: handle, Status: chain.ReceiptReverted, Reason: reason}
	}

	switch tx.method {
	case "createListing":
		if len(tx.args) != 7 {
			return revert("createListing: bad argument count")
		}
		ord, err := argUint(tx.args, 4)
		if err != nil {
			return revert(err.Error())
		}
		expertiseType, err := domain.ExpertiseTypeFromOrdinal(uint8(ord))
		if err != nil {
			return revert(err.Error())
		}
		listing := domain.Listing{
			ID:            r.nextID,
			Creator:       r.sender,
			Title:         tx.args[0].(string),
			Description:   tx.args[1].(string),
			Category:      tx.args[2].(string),
			IsProject:     tx.args[3].(bool),
			ExpertiseType: expertiseType,
			Expertise:     tx.args[5].(string),
			ContactMethod: tx.args[6].(string),
			Timestamp:     r.now(),
			Active:        true,
			Status:        domain.StatusOpen,
			Responder:     domain.ZeroAddress,
		}
		r.nextID++
		r.listings[listing.ID] = listing
		r.bumpStats(r.sender, func(s *domain.Stats) { s.Created++ })
		return confirmed

	case "respondToListing":
		id, err := argUint(tx.args, 0)
		if err != nil {
			return revert(err.Error())
		}
		listing, ok := r.listings[id]
		if !ok {
			return revert(fmt.Sprintf("listing %d does not exist", id))
		}
		if listing.Status != domain.StatusOpen || !listing.Active {
			return revert(fmt.Sprintf("listing %d is not open", id))
		}
		if listing.Creator == r.sender {
			return revert("creator cannot respond to own listing")
		}
		listing.Status = domain.StatusInProgress
		listing.Responder = r.sender
		r.listings[id] = listing
		r.bumpStats(r.sender, func(s *domain.Stats) { s.Responses++ })
		return confirmed

	case "markResolved":
		id, err := argUint(tx.args, 0)
		if err != nil {
			return revert(err.Error())
		}
		listing, ok := r.listings[id]
		if !ok {
			return revert(fmt.Sprintf("listing %d does not exist", id))
		}
		if listing.Creator != r.sender {
			return revert("only the creator can resolve a listing")
		}
		if listing.Status != domain.StatusInProgress {
			return revert(fmt.Sprintf("listing %d is not in progress", id))
		}
		listing.Status = domain.StatusResolved
		r.listings[id] = listing
		r.bumpStats(r.sender, func(s *domain.Stats) { s.Completed++ })
		return confirmed

	case "createProfile":
		if existing, ok := r.profiles[r.sender]; ok && existing.IsActive {
			return revert("profile already exists")
		}
		profile, err := profileFromArgs(r.sender, tx.args)
		if err != nil {
			return revert(err.Error())
		}
		profile.LastStatusUpdate = r.now()
		r.profiles[r.sender] = profile
		r.bumpStats(r.sender, func(*domain.Stats) {})
		return confirmed

	case "updateProfile":
		existing, ok := r.profiles[r.sender]
		if !ok || !existing.IsActive {
			return revert("no active profile to update")
		}
		profile, err := profileFromArgs(r.sender, tx.args)
		if err != nil {
			return revert(err.Error())
		}
		profile.LastStatusUpdate = r.now()
		r.profiles[r.sender] = profile
		return confirmed

	case "deactivateProfile":
		existing, ok := r.profiles[r.sender]
		if !ok || !existing.IsActive {
			return revert("no active profile to deactivate")
		}
		existing.IsActive = false
		existing.LastStatusUpdate = r.now()
		r.profiles[r.sender] = existing
		return confirmed

	default:
		return revert(fmt.Sprintf("unknown write method %s", tx.method))
	}
}

func (r *Registry) bumpStats(account domain.Address, mutate func(*domain.Stats)) {
	stats := r.stats[account]
	stats.Account = account
	mutate(&stats)
	stats.LastActive = r.now()
	r.stats[account] = stats
}

func (r *Registry) listingRecords(match func(domain.Listing) bool) []any {
	ids := make([]uint64, 0, len(r.listings))
	for id, l := range r.listings {
		if match(l) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, listingRecord(r.listings[id]))
	}
	return out
}

func (r *Registry) profileAccounts(match func(domain.Profile) bool) []any {
	accounts := make([]string, 0, len(r.profiles))
	for account, p := range r.profiles {
		if p.IsActive && match(p) {
			accounts = append(accounts, account.String())
		}
	}
	sort.Strings(accounts)

	out := make([]any, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a)
	}
	return out
}

func (r *Registry) sleep(ctx context.Context) error {
	if r.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.Latency):
		return nil
	}
}

func listingRecord(l domain.Listing) []any {
	return []any{
		l.ID, l.Creator.String(), l.Title, l.Description, l.Category,
		l.IsProject, uint64(l.ExpertiseType.Ordinal()), l.Expertise,
		l.ContactMethod, l.Timestamp, l.Active, uint64(l.Status.Ordinal()),
		l.Responder.String(),
	}
}

func profileRecord(p domain.Profile) []any {
	areas := p.ExpertiseAreas
	if areas == nil {
		areas = []string{}
	}
	return []any{
		p.IsActive, p.ContactInfo, p.OnSiteStatus, p.TravelDetails,
		p.LastStatusUpdate, areas, p.Credentials, p.Bio,
	}
}

func statsRecord(s domain.Stats) []any {
	return []any{s.Completed, s.Created, s.Responses, s.LastActive}
}

func profileFromArgs(account domain.Address, args []any) (domain.Profile, error) {
	if len(args) != 6 {
		return domain.Profile{}, fmt.Errorf("profile write: bad argument count %d", len(args))
	}
	areas, ok := args[3].([]string)
	if !ok {
		return domain.Profile{}, fmt.Errorf("profile write: expertise areas are %T", args[3])
	}
	return domain.Profile{
		Account:        account,
		IsActive:       true,
		ContactInfo:    args[0].(string),
		OnSiteStatus:   args[1].(bool),
		TravelDetails:  args[2].(string),
		ExpertiseAreas: append([]string(nil), areas...),
		Credentials:    args[4].(string),
		Bio:            args[5].(string),
	}, nil
}

func argUint(args []any, i int) (uint64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	n, ok := args[i].(uint64)
	if !ok {
		return 0, fmt.Errorf("argument %d is %T, want uint64", i, args[i])
	}
	return n, nil
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d is %T, want string", i, args[i])
	}
	return s, nil
}

func argBool(args []any, i int) (bool, error) {
	if i >= len(args) {
		return false, fmt.Errorf("missing argument %d", i)
	}
	b, ok := args[i].(bool)
	if !ok {
		return false, fmt.Errorf("argument %d is %T, want bool", i, args[i])
	}
	return b, nil
}
