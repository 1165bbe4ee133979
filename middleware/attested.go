package middleware

import (
	"net/http"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
)

// RequireAttestation returns middleware that admits any request carrying a
// valid, unexpired attestation token.
//
//	Docs: docs/attestation.md
func RequireAttestation(engine *biometric.Engine) func(http.Handler) http.Handler {
	return Guard(engine, 0)
}
