package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brojonat/arproxy/service/lookup"
)

// handleLookupTransaction serves GET /api/arweave/{transactionHash}.
// Success writes the lookup result with 200. Any failure writes 500 with the
// failure message encoded as a JSON string.
func handleLookupTransaction(svc TransactionLookup, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("transactionHash")

		result, err := svc.Lookup(r.Context(), id)
		if err != nil {
			logger.ErrorContext(r.Context(), "transaction lookup failed",
				"id", id,
				"op", lookup.FailedOp(err),
				"error", err,
			)
			writeJSON(w, lookup.FailureMessage(err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, result, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
