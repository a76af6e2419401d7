package httpapi

import (
	"errors"
	"net/http"

	"github.com/walkthru/seamap-tiled/internal/apierr"
)

// writeError translates a package error into the response the §6 table
// promises, logging 5xx failures at error and refused (403) requests at
// warn with the offending path.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.StatusCode(err)
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if status == http.StatusForbidden {
		a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("request refused")
	}

	var apiErr *apierr.Error
	msg := err.Error()
	if errors.As(err, &apiErr) {
		msg = apiErr.Msg
	}
	http.Error(w, msg, status)
}
