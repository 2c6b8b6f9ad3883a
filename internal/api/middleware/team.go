package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// TeamIDKey is the context key for the authenticated team ID.
const TeamIDKey contextKey = "team_id"

// DefaultTeamID is used when no team is specified. Single-team deployments
// never send the header at all.
const DefaultTeamID = "default"

// TeamExtractor resolves the team every request operates on. It checks the
// X-Team-Id header, then the team query parameter, and falls back to the
// default team. The resolved ID is the only team anything downstream may
// touch; nothing in a request body can widen it.
func TeamExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		team := ""

		if h := r.Header.Get("X-Team-Id"); h != "" {
			team = strings.TrimSpace(h)
		}
		if team == "" {
			if q := r.URL.Query().Get("team"); q != "" {
				team = strings.TrimSpace(q)
			}
		}
		if team == "" {
			team = DefaultTeamID
		}

		ctx := context.WithValue(r.Context(), TeamIDKey, team)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTeamID retrieves the team ID from the request context.
func GetTeamID(ctx context.Context) string {
	if v, ok := ctx.Value(TeamIDKey).(string); ok {
		return v
	}
	return DefaultTeamID
}
