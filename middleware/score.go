package middleware

import (
	"net/http"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
)

func RequireScore(engine *biometric.Engine, minScore float32) func(http.Handler) http.Handler {
	return Guard(engine, minScore)
}
