package middleware

import (
	"net/http"

	"yieldwallet/pkg/logger"
)

// AuditMiddleware writes an audit record for every state-changing admin
// request.
type AuditMiddleware struct {
	logger logger.Logger
}

// NewAuditMiddleware creates a new AuditMiddleware.
func NewAuditMiddleware(log logger.Logger) *AuditMiddleware {
	return &AuditMiddleware{logger: log}
}

// Audit records the actor, route and outcome once the handler returns.
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		wrapped, ok := w.(*responseWriter)
		if !ok {
			wrapped = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		}
		next.ServeHTTP(wrapped, r)

		fields := map[string]interface{}{
			"action":     r.Method + " " + routeTemplate(r),
			"path":       r.URL.Path,
			"status":     wrapped.statusCode,
			"request_id": RequestIDFromContext(r.Context()),
			"ip":         r.RemoteAddr,
		}
		if uid, ok := UserIDFromContext(r.Context()); ok {
			fields["actor_id"] = uid
		}
		m.logger.Info("Admin action", fields)
	})
}
