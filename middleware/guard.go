package middleware

import (
	"context"
	"net/http"
	"strings"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
)

type claimsContextKey struct{}

func AttestationFromContext(ctx context.Context) (*biometric.AttestationClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*biometric.AttestationClaims)
	return claims, ok
}

func Guard(engine *biometric.Engine, minScore float32) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.ParseAttestation(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Score < minScore {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
