package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/reqctx"
	"github.com/armorclaw/license-server/internal/store"
)

// correlationMiddleware generates a correlation id if the caller didn't
// supply one, propagates a trace id, and mirrors both onto the response
// headers.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get("X-Correlation-ID")
		if cid == "" {
			cid = reqctx.NewID()
		}
		tid := r.Header.Get("X-Trace-ID")
		if tid == "" {
			tid = reqctx.NewID()
		}

		ctx := reqctx.WithCorrelationID(r.Context(), cid)
		ctx = reqctx.WithTraceID(ctx, tid)

		w.Header().Set("X-Correlation-ID", cid)
		w.Header().Set("X-Trace-ID", tid)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestTimeoutMiddleware bounds every request to the configured
// end-to-end deadline, propagated through context so every downstream
// QueryContext/ExecContext call inherits it.
func requestTimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// brandAuthMiddleware authenticates /brand/* routes: require X-API-Key,
// hash and look it up, reject 401 on any failure, attach the brand to the
// request context, and best-effort touch last_used_at — generalizing
// withAdminAuth's shape from a single static token to a hashed, per-brand
// credential store.
func brandAuthMiddleware(apiKeys store.APIKeyRepo, brands store.BrandRepo, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-API-Key")
			if raw == "" {
				writeError(w, r, domain.ErrInvalidAPIKey, logger)
				return
			}

			hash := hashCredential(raw)
			key, err := apiKeys.GetByHash(r.Context(), hash)
			if err != nil {
				writeError(w, r, err, logger)
				return
			}
			if key == nil || !constantTimeEqual(key.KeyHash, hash) {
				writeError(w, r, domain.ErrInvalidAPIKey, logger)
				return
			}
			if key.Expired(time.Now().UTC()) {
				writeError(w, r, domain.ErrInvalidAPIKey, logger)
				return
			}

			brand, err := brands.GetByID(r.Context(), key.BrandID)
			if err != nil {
				writeError(w, r, err, logger)
				return
			}
			if brand == nil {
				writeError(w, r, domain.ErrInvalidAPIKey, logger)
				return
			}

			apiKeys.TouchLastUsed(r.Context(), key.ID, time.Now().UTC())

			ctx := reqctx.WithBrand(r.Context(), brand, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeScopeMiddleware rejects read-scoped keys on mutating routes with
// 403 FORBIDDEN, per the APIKey.CanWrite invariant.
func writeScopeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := reqctx.AuthenticatedAPIKey(r.Context())
			if ok && !key.CanWrite() {
				writeError(w, r, domain.ErrForbiddenScope, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// productAuthMiddleware authenticates /product/* routes: require
// X-License-Key header or query parameter, hash and look it up, reject 401
// on failure.
func productAuthMiddleware(licenseKeys store.LicenseKeyRepo, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-License-Key")
			if raw == "" {
				raw = r.URL.Query().Get("license_key")
			}
			if raw == "" {
				writeError(w, r, domain.ErrInvalidLicenseKey, logger)
				return
			}

			hash := hashCredential(raw)
			lk, err := licenseKeys.GetByHash(r.Context(), hash)
			if err != nil {
				writeError(w, r, err, logger)
				return
			}
			if lk == nil {
				writeError(w, r, domain.ErrInvalidLicenseKey, logger)
				return
			}

			ctx := reqctx.WithLicenseKey(r.Context(), lk)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rateLimiter builds a per-API-key limiter using go-chi/httprate, keyed on
// the resolved API key's id so distinct brands never share a bucket.
// httprate counts with a sliding window (the previous window's count is
// weighted into the current one), not a fixed window that resets at each
// boundary.
func rateLimiter(requests int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key, ok := reqctx.AuthenticatedAPIKey(r.Context()); ok {
				return key.ID.String(), nil
			}
			return "anonymous", nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, domain.ErrRateLimitExceeded, logger)
		}),
	)
}

// idempotencyMiddleware lets mutating brand routes honor Idempotency-Key by
// returning the stored response
// verbatim on a repeat within the TTL, or persisting the response of a
// fresh run.
func idempotencyMiddleware(idem store.IdempotencyRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			brand, ok := reqctx.Brand(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if rec, err := idem.Get(r.Context(), brand.ID, key); err == nil && rec != nil && rec.ExpiresAt.After(time.Now().UTC()) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(rec.StatusCode)
				_, _ = w.Write(rec.ResponseData)
				return
			}

			rec := &captureRecorder{ResponseWriter: w, status: http.StatusOK, body: &bytes.Buffer{}}
			next.ServeHTTP(rec, r)

			_ = idem.Save(r.Context(), &domain.IdempotencyRecord{
				Key:          key,
				BrandID:      brand.ID,
				ResponseData: rec.body.Bytes(),
				StatusCode:   rec.status,
				CreatedAt:    time.Now().UTC(),
				ExpiresAt:    time.Now().UTC().Add(domain.DefaultIdempotencyTTL),
			})
		})
	}
}

// captureRecorder tees the response body so the idempotency middleware can
// persist exactly what the client received.
type captureRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (c *captureRecorder) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureRecorder) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func hashCredential(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// constantTimeEqual compares two hex digests in constant time, following
// link-rift's api_key_service.go use of crypto/subtle for credential
// checks.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
