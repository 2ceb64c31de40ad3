package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
)

const (
	maxIdempotencyKey  = 128
	maxIdempotencyBody = 1 << 20
)

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on unsafe methods. Requests without the header pass
// through unchanged.
type IdempotencyMiddleware struct {
	cache    *redis.Client
	ttl      time.Duration
	wait     time.Duration
	pollStep time.Duration
	logger   logger.Logger
}

// NewIdempotencyMiddleware constructs an IdempotencyMiddleware with a TTL.
func NewIdempotencyMiddleware(cache *redis.Client, ttl time.Duration, log logger.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		cache:    cache,
		ttl:      ttl,
		wait:     5 * time.Second,
		pollStep: 100 * time.Millisecond,
		logger:   log,
	}
}

// Honour wraps next with Idempotency-Key handling. Keys are scoped to the
// authenticated caller so two users cannot collide.
func (m *IdempotencyMiddleware) Honour(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut &&
			r.Method != http.MethodPatch && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			jsonError(w, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}

		fingerprint, err := bodyFingerprint(r)
		if err != nil {
			jsonError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
			return
		}

		scope := "anonymous"
		if uid, ok := UserIDFromContext(r.Context()); ok {
			scope = uid.String()
		}
		dataKey := fmt.Sprintf("idempotency:data:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)
		lockKey := fmt.Sprintf("idempotency:lock:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)

		if m.replayCached(r.Context(), w, dataKey, fingerprint) {
			return
		}

		acquired, err := m.cache.SetNX(r.Context(), lockKey, RequestIDFromContext(r.Context()), m.ttl).Result()
		if err != nil {
			m.logger.Error("Idempotency store unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			jsonError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		if !acquired {
			// another request with this key is in flight; wait for its result
			deadline := time.Now().Add(m.wait)
			for time.Now().Before(deadline) {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(m.pollStep):
				}
				if m.replayCached(r.Context(), w, dataKey, fingerprint) {
					return
				}
			}
			jsonError(w, http.StatusConflict, errors.ErrDuplicateRequest.Error())
			return
		}
		defer m.cache.Del(context.WithoutCancel(r.Context()), lockKey)

		cw := newCaptureWriter(w, 1<<20)
		next.ServeHTTP(cw, r)

		if err := m.cacheResponse(r.Context(), dataKey, fingerprint, cw); err != nil {
			m.logger.Warn("Failed to store idempotent response", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
}

type capturedResponse struct {
	Status      int               `json:"status"`
	Body        []byte            `json:"body"`
	Headers     map[string]string `json:"headers"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

// bodyFingerprint hashes the request body and puts it back for the handler.
func bodyFingerprint(r *http.Request) (string, error) {
	if r.Body == nil {
		return hex.EncodeToString(sha256.New().Sum(nil)), nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBody+1))
	if err != nil {
		return "", err
	}
	if len(raw) > maxIdempotencyBody {
		return "", fmt.Errorf("body exceeds %d bytes", maxIdempotencyBody)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// replayCached writes the stored response for dataKey, or a 422 when the key
// was first used with a different body. It reports whether it wrote anything.
func (m *IdempotencyMiddleware) replayCached(ctx context.Context, w http.ResponseWriter, dataKey, fingerprint string) bool {
	payload, err := m.cache.Get(ctx, dataKey).Bytes()
	if err != nil {
		return false
	}

	var cr capturedResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return false
	}
	if cr.Fingerprint != "" && cr.Fingerprint != fingerprint {
		jsonError(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request body")
		return true
	}

	for k, v := range cr.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

// cacheResponse stores completed responses. Server errors and truncated
// bodies are not stored so a retry runs the handler again.
func (m *IdempotencyMiddleware) cacheResponse(ctx context.Context, dataKey, fingerprint string, cw *captureWriter) error {
	if cw.status == 0 || cw.status >= http.StatusInternalServerError || cw.truncated {
		return nil
	}

	payload, err := json.Marshal(capturedResponse{
		Status:      cw.status,
		Body:        cw.buf,
		Headers:     cw.headers,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return err
	}
	return m.cache.Set(ctx, dataKey, payload, m.ttl).Err()
}

type captureWriter struct {
	http.ResponseWriter
	buf       []byte
	limit     int
	truncated bool
	status    int
	headers   map[string]string
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	if w.status != 0 {
		return
	}
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if space := w.limit - len(w.buf); space < len(p) {
		w.truncated = true
		if space > 0 {
			w.buf = append(w.buf, p[:space]...)
		}
	} else {
		w.buf = append(w.buf, p...)
	}
	return w.ResponseWriter.Write(p)
}
