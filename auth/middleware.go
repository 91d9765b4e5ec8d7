package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/agenthealth/observe"
)

// Require returns middleware that admits a request when an authenticator
// supporting it succeeds. Rejected requests get 401. With no authenticators
// every request is admitted.
func Require(logger observe.Logger, authenticators ...Authenticator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		if len(authenticators) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := ErrMissingCredentials
			for _, a := range authenticators {
				if !a.Supports(r) {
					continue
				}
				id, authErr := a.Authenticate(r)
				if authErr == nil {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
					return
				}
				err = authErr
			}

			logger.Warn(r.Context(), "request rejected",
				observe.F("path", r.URL.Path),
				observe.F("remote", r.RemoteAddr),
				observe.F("error", err),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="agenthealth"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		})
	}
}
