package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vitalia/internal/chain"
	"vitalia/internal/decode"
	domainerrors "vitalia/pkg/domain-errors"
	"vitalia/pkg/platform/sentinel"
)

// errorBody is the JSON error envelope every endpoint shares.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// collectionMeta carries cache freshness alongside collection payloads.
type collectionMeta struct {
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates domain and chain errors to HTTP responses so every
// handler reports failures the same way.
func writeError(w http.ResponseWriter, err error) {
	var de *domainerrors.Error
	if errors.As(err, &de) {
		writeJSON(w, statusForCode(de.Code), errorBody{Error: string(de.Code), Message: de.Message})
		return
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.Is(err, sentinel.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conflict", Message: err.Error()})
	case decode.IsMalformed(err):
		// A structurally invalid registry record is not retryable the way a
		// transport failure is; keep the two distinguishable.
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "malformed_record", Message: err.Error()})
	case chain.IsRejected(err):
		writeJSON(w, http.StatusConflict, errorBody{Error: "submission_rejected", Message: err.Error()})
	case chain.IsExecution(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "execution_reverted", Message: err.Error()})
	case isChainTransport(err):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream_unavailable", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

// isChainTransport matches only categorized transport errors. chain.IsTransport
// treats any uncategorized error as transport, which is right at the chain
// boundary but would hide internal failures behind a 502 here.
func isChainTransport(err error) bool {
	var ce *chain.Error
	return errors.As(err, &ce) && ce.Category == chain.CategoryTransport
}

func statusForCode(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeInvalidInput, domainerrors.CodeBadRequest:
		return http.StatusBadRequest
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeBadRequest, "malformed request body")
	}
	return nil
}
