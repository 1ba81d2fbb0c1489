package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
	"vitalia/internal/query"
	domainerrors "vitalia/pkg/domain-errors"
)

type profileResponse struct {
	Profile *domain.Profile `json:"profile"`
	Stats   domain.Stats    `json:"stats"`
	Meta    collectionMeta  `json:"meta"`
}

type directoryResponse struct {
	Accounts []domain.Address `json:"accounts"`
	Meta     collectionMeta   `json:"meta"`
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	account := domain.Address(chi.URLParam(r, "address"))

	result, err := h.profiles.Get(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Profile: result.Profile,
		Stats:   result.Stats,
		Meta:    collectionMeta{FetchedAt: result.FetchedAt, Stale: result.Stale},
	})
}

func (h *Handler) handleProfileDirectory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		result query.DirectoryResult
		err    error
	)
	switch {
	case q.Get("expertise") != "":
		result, err = h.profiles.ByExpertise(r.Context(), q.Get("expertise"))
	case q.Get("on_site") != "":
		result, err = h.profiles.ByOnSiteStatus(r.Context(), q.Get("on_site") == "true")
	default:
		result, err = h.profiles.Active(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, directoryResponse{
		Accounts: result.Accounts,
		Meta:     collectionMeta{FetchedAt: result.FetchedAt, Stale: result.Stale},
	})
}

type profileRequest struct {
	ContactInfo    string   `json:"contact_info"`
	OnSiteStatus   bool     `json:"on_site_status"`
	TravelDetails  string   `json:"travel_details"`
	ExpertiseAreas []string `json:"expertise_areas"`
	Credentials    string   `json:"credentials"`
	Bio            string   `json:"bio"`
}

func (p profileRequest) params() chain.ProfileParams {
	return chain.ProfileParams{
		ContactInfo:    p.ContactInfo,
		OnSiteStatus:   p.OnSiteStatus,
		TravelDetails:  p.TravelDetails,
		ExpertiseAreas: p.ExpertiseAreas,
		Credentials:    p.Credentials,
		Bio:            p.Bio,
	}
}

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	account, err := profileAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	opID, err := h.profiles.Create(r.Context(), account, req.params())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationAccepted{OperationID: opID})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	account, err := profileAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	opID, err := h.profiles.Update(r.Context(), account, req.params())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationAccepted{OperationID: opID})
}

func (h *Handler) handleDeactivateProfile(w http.ResponseWriter, r *http.Request) {
	account, err := profileAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opID, err := h.profiles.Deactivate(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationAccepted{OperationID: opID})
}

func profileAccount(r *http.Request) (domain.Address, error) {
	account := domain.Address(chi.URLParam(r, "address"))
	if account.IsZero() {
		return "", domainerrors.New(domainerrors.CodeBadRequest, "account address is required")
	}
	return account, nil
}
