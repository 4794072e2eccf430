package http

import (
	"net/http"
	"strconv"

	"github.com/kader009/trustedge-backend/pkg/httputil"
	"github.com/kader009/trustedge-backend/pkg/validator"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// decode reads and validates a JSON body, writing the 400 response itself
// when that fails.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter. Missing values give
// nil; malformed ones are reported through ok.
func queryInt(r *http.Request, key string) (v *int, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (v *bool, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &b, true
}

func writeInvalidQuery(w http.ResponseWriter, key string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Message: "invalid query parameter " + key,
		Error:   &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid query parameter " + key},
	})
}
