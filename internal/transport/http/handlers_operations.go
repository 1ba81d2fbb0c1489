package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vitalia/internal/txtrack"
	domainerrors "vitalia/pkg/domain-errors"
)

type operationResponse struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	Target      string    `json:"target"`
	Status      string    `json:"status"`
	Handle      string    `json:"handle,omitempty"`
	Error       string    `json:"error,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

func operationFrom(op txtrack.Operation) operationResponse {
	out := operationResponse{
		ID:          op.ID,
		Kind:        op.Kind,
		Target:      op.Target,
		Status:      string(op.Status),
		Handle:      string(op.Handle),
		Reason:      op.Reason,
		SubmittedAt: op.SubmittedAt,
		FinishedAt:  op.FinishedAt,
	}
	if op.Err != nil {
		out.Error = op.Err.Error()
	}
	return out
}

func (h *Handler) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, domainerrors.Newf(domainerrors.CodeBadRequest, "invalid operation id %q", raw))
		return
	}

	// Either facade reaches the shared tracker.
	op, ok := h.listings.OperationStatus(id)
	if !ok {
		writeError(w, domainerrors.Newf(domainerrors.CodeNotFound, "operation %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, operationFrom(op))
}

// handleListOperations serves the operation journal: lifecycle events by
// write target, or the most recent events overall.
func (h *Handler) handleListOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if target := q.Get("target"); target != "" {
		events, err := h.journal.ListByTarget(r.Context(), target)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
		return
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, domainerrors.Newf(domainerrors.CodeBadRequest, "invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	events, err := h.journal.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
