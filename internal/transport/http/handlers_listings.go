package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
	"vitalia/internal/listings"
	domainerrors "vitalia/pkg/domain-errors"
)

type listingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Meta     collectionMeta   `json:"meta"`
}

type categoriesResponse struct {
	Categories []string       `json:"categories"`
	Meta       collectionMeta `json:"meta"`
}

// operationAccepted is the 202 body for tracked writes.
type operationAccepted struct {
	OperationID uuid.UUID `json:"operation_id"`
}

func (h *Handler) handleBrowseListings(w http.ResponseWriter, r *http.Request) {
	filter, order, err := browseParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.listings.Browse(r.Context(), filter, order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingsResponse{
		Listings: view.Listings,
		Meta:     collectionMeta{FetchedAt: view.FetchedAt, Stale: view.Stale},
	})
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.listings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	result, err := h.listings.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories: result.Categories,
		Meta:       collectionMeta{FetchedAt: result.FetchedAt, Stale: result.Stale},
	})
}

type createListingRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	IsProject     bool   `json:"is_project"`
	ExpertiseType string `json:"expertise_type"`
	Expertise     string `json:"expertise"`
	ContactMethod string `json:"contact_method"`
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	opID, err := h.listings.Create(r.Context(), chain.CreateListingParams{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		IsProject:     req.IsProject,
		ExpertiseType: domain.ExpertiseType(req.ExpertiseType),
		Expertise:     req.Expertise,
		ContactMethod: req.ContactMethod,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationAccepted{OperationID: opID})
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opID, err := h.listings.Respond(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationAccepted{OperationID: opID})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opID, err := h.listings.Resolve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationAccepted{OperationID: opID})
}

func listingID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, domainerrors.Newf(domainerrors.CodeBadRequest, "invalid listing id %q", raw)
	}
	return id, nil
}

func browseParams(r *http.Request) (listings.Filter, listings.Order, error) {
	q := r.URL.Query()

	var filter listings.Filter
	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseListingStatus(raw)
		if err != nil {
			return listings.Filter{}, "", domainerrors.Newf(domainerrors.CodeBadRequest, "unknown status %q", raw)
		}
		filter.Status = &status
	}
	if raw := q.Get("type"); raw != "" {
		t := domain.ExpertiseType(raw)
		if !t.IsValid() {
			return listings.Filter{}, "", domainerrors.Newf(domainerrors.CodeBadRequest, "unknown expertise type %q", raw)
		}
		filter.ExpertiseType = t
	}
	filter.Creator = domain.Address(q.Get("creator"))
	filter.Responder = domain.Address(q.Get("responder"))
	filter.Category = q.Get("category")
	filter.Expertise = q.Get("expertise")
	filter.Search = q.Get("q")
	filter.IncludeAll = q.Get("all") == "true"

	order, ok := listings.ParseOrder(q.Get("sort"))
	if !ok {
		return listings.Filter{}, "", domainerrors.Newf(domainerrors.CodeBadRequest, "unknown sort %q", q.Get("sort"))
	}
	return filter, order, nil
}
