package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/licensesvc"
	"github.com/armorclaw/license-server/internal/reqctx"
	"github.com/armorclaw/license-server/internal/seatmanager"
	"github.com/armorclaw/license-server/internal/store"
)

// ProductHandlers implements the /api/v1/product/* routes: activate,
// status, and deactivate. Authenticated via the license key resolved by
// productAuthMiddleware.
type ProductHandlers struct {
	seats       *seatmanager.Manager
	status      *licensesvc.Service
	products    store.ProductRepo
	licenses    store.LicenseRepo
	activations store.ActivationRepo
	q           store.Querier
	logger      *slog.Logger
}

func NewProductHandlers(
	seats *seatmanager.Manager,
	status *licensesvc.Service,
	products store.ProductRepo,
	licenses store.LicenseRepo,
	activations store.ActivationRepo,
	q store.Querier,
	logger *slog.Logger,
) *ProductHandlers {
	return &ProductHandlers{
		seats: seats, status: status,
		products: products, licenses: licenses, activations: activations,
		q: q, logger: logger,
	}
}

type activateRequest struct {
	ProductSlug        string         `json:"product_slug"`
	InstanceIdentifier string         `json:"instance_identifier"`
	InstanceType       string         `json:"instance_type"`
	InstanceMetadata   map[string]any `json:"instance_metadata"`
}

func (h *ProductHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	lk, _ := reqctx.LicenseKey(r.Context())

	var req activateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if req.ProductSlug == "" || req.InstanceIdentifier == "" || req.InstanceType == "" {
		writeError(w, r, domain.ValidationError("product_slug, instance_identifier, and instance_type are required"), h.logger)
		return
	}

	license, err := h.licenseForProductSlug(r.Context(), lk, req.ProductSlug)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.seats.Activate(r.Context(), seatmanager.ActivateRequest{
		LicenseID:          license.ID,
		InstanceIdentifier: req.InstanceIdentifier,
		InstanceType:       domain.InstanceType(req.InstanceType),
		InstanceMetadata:   req.InstanceMetadata,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"activation_id": result.Activation.ID,
		"outcome":       string(result.Outcome),
		"seats_used":    result.SeatsUsed,
		"seat_limit":    result.SeatLimit,
	})
}

func (h *ProductHandlers) Status(w http.ResponseWriter, r *http.Request) {
	lk, _ := reqctx.LicenseKey(r.Context())

	status, err := h.status.GetLicenseStatus(r.Context(), lk)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (h *ProductHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	lk, _ := reqctx.LicenseKey(r.Context())

	activationID, err := uuid.Parse(chi.URLParam(r, "activation_id"))
	if err != nil {
		writeError(w, r, domain.ValidationError("invalid activation_id"), h.logger)
		return
	}

	activation, err := h.activations.GetByID(r.Context(), activationID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if activation == nil {
		writeError(w, r, domain.ErrActivationNotFound, h.logger)
		return
	}

	license, err := h.licenses.GetByID(r.Context(), h.q, activation.LicenseID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if license == nil || license.LicenseKeyID != lk.ID {
		writeError(w, r, domain.ErrForbiddenScope, h.logger)
		return
	}

	if err := h.seats.Deactivate(r.Context(), activation.LicenseID, activation.InstanceIdentifier); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deactivated": true})
}

// licenseForProductSlug resolves the License under lk for the named
// product, scoping the activate call to the authenticating credential.
func (h *ProductHandlers) licenseForProductSlug(ctx context.Context, lk *domain.LicenseKey, productSlug string) (*domain.License, error) {
	product, err := h.products.GetBySlug(ctx, lk.BrandID, productSlug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	licenses, err := h.licenses.ListByLicenseKeyID(ctx, h.q, lk.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range licenses {
		if l.ProductID == product.ID {
			return l, nil
		}
	}
	return nil, domain.ErrLicenseNotFound
}
