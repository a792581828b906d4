package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/licensesvc"
	"github.com/armorclaw/license-server/internal/reqctx"
)

// BrandHandlers implements the /api/v1/brand/* routes: provisioning,
// lifecycle transitions, and lookup by customer email.
type BrandHandlers struct {
	svc       *licensesvc.Service
	validator *validator.Validate
	logger    *slog.Logger
}

func NewBrandHandlers(svc *licensesvc.Service, logger *slog.Logger) *BrandHandlers {
	return &BrandHandlers{svc: svc, validator: validator.New(), logger: logger}
}

type provisionRequest struct {
	CustomerEmail  string      `json:"customer_email" validate:"required,email"`
	Products       []uuid.UUID `json:"products" validate:"required,min=1"`
	ExpirationDate *time.Time  `json:"expiration_date"`
	MaxSeats       int         `json:"max_seats"`
}

type licenseDTO struct {
	ID           uuid.UUID `json:"id"`
	LicenseKeyID uuid.UUID `json:"license_key_id"`
	ProductID    uuid.UUID `json:"product_id"`
	Status       string    `json:"status"`
	SeatLimit    int       `json:"seat_limit"`
	ExpiresAt    *string   `json:"expires_at,omitempty"`
	CreatedAt    string    `json:"created_at"`
}

func toLicenseDTO(l *domain.License) licenseDTO {
	dto := licenseDTO{
		ID:           l.ID,
		LicenseKeyID: l.LicenseKeyID,
		ProductID:    l.ProductID,
		Status:       string(l.Status),
		SeatLimit:    l.SeatLimit,
		CreatedAt:    l.CreatedAt.Format(time.RFC3339),
	}
	if l.ExpiresAt != nil {
		s := l.ExpiresAt.Format(time.RFC3339)
		dto.ExpiresAt = &s
	}
	return dto
}

func (h *BrandHandlers) Provision(w http.ResponseWriter, r *http.Request) {
	brand, _ := reqctx.Brand(r.Context())

	var req provisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, domain.ValidationError(err.Error()), h.logger)
		return
	}

	result, err := h.svc.Provision(r.Context(), licensesvc.ProvisionInput{
		BrandID:       brand.ID,
		CustomerEmail: req.CustomerEmail,
		ProductIDs:    req.Products,
		ExpiresAt:     req.ExpirationDate,
		MaxSeats:      req.MaxSeats,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	licenses := make([]licenseDTO, 0, len(result.Licenses))
	for _, l := range result.Licenses {
		licenses = append(licenses, toLicenseDTO(l))
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"license_key": map[string]any{
			"id":             result.LicenseKey.ID,
			"key":            result.LicenseKey.Key,
			"brand_id":       result.LicenseKey.BrandID,
			"customer_email": result.LicenseKey.CustomerEmail,
			"created_at":     result.LicenseKey.CreatedAt.Format(time.RFC3339),
		},
		"licenses": licenses,
	})
}

type renewRequest struct {
	ExpirationDate time.Time `json:"expiration_date" validate:"required"`
}

func (h *BrandHandlers) Renew(w http.ResponseWriter, r *http.Request) {
	brand, _ := reqctx.Brand(r.Context())
	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeError(w, r, domain.ValidationError("invalid license_id"), h.logger)
		return
	}

	var req renewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, domain.ValidationError(err.Error()), h.logger)
		return
	}

	license, err := h.svc.Renew(r.Context(), brand.ID, licenseID, req.ExpirationDate)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, toLicenseDTO(license))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *BrandHandlers) Suspend(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.svc.Suspend)
}

func (h *BrandHandlers) Resume(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.svc.Resume)
}

func (h *BrandHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.svc.Cancel)
}

func (h *BrandHandlers) simpleTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, brandID, licenseID uuid.UUID) (*domain.License, error)) {
	brand, _ := reqctx.Brand(r.Context())
	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeError(w, r, domain.ValidationError("invalid license_id"), h.logger)
		return
	}

	var req reasonRequest
	_ = decodeJSONOptional(r, &req)

	license, err := transition(r.Context(), brand.ID, licenseID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, toLicenseDTO(license))
}

func (h *BrandHandlers) List(w http.ResponseWriter, r *http.Request) {
	brand, _ := reqctx.Brand(r.Context())
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, r, domain.ValidationError("email query parameter is required"), h.logger)
		return
	}

	entries, err := h.svc.ListByEmail(r.Context(), brand.ID, email)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"licenses": entries})
}

// decodeJSONOptional tolerates an empty body, for {reason?} requests.
func decodeJSONOptional(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(r, v)
}
