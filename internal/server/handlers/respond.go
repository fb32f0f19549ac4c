package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/postforge/postforge/internal/errors"
)

const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(out); err != nil {
		if err == io.EOF {
			return apperrors.NewInvalidInputError("request body is required")
		}
		return apperrors.WrapInvalidInput(r.Context(), err, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
