package api

import (
	"context"
	"net/http"

	"bengkel/internal/models"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey int

const sessionKey contextKey = iota

func withSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// sessionFrom returns the session stored by the authenticate middleware.
func sessionFrom(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionKey).(*models.Session)
	return session, ok && session != nil
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
