package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/licensesvc"
)

type brandFixture struct {
	h        *BrandHandlers
	brands   *fakeBrandRepo
	products *fakeProductRepo
}

func newBrandFixture() *brandFixture {
	brands := newFakeBrandRepo()
	products := newFakeProductRepo()
	keys := newFakeLicenseKeyRepo()
	licenses := newFakeLicenseRepo()
	activations := newFakeActivationRepo()
	svc := licensesvc.New(fakeDB{}, nil, brands, products, keys, licenses, activations, nil, nil, discardLogger())
	return &brandFixture{h: NewBrandHandlers(svc, discardLogger()), brands: brands, products: products}
}

func (f *brandFixture) seedBrandAndProduct() (*domain.Brand, *domain.Product) {
	brand := &domain.Brand{ID: uuid.New(), Name: "Acme", Slug: "acme", Prefix: "ACME"}
	f.brands.Create(context.Background(), brand)
	product := &domain.Product{ID: uuid.New(), BrandID: brand.ID, Name: "Widget", Slug: "widget"}
	f.products.Create(context.Background(), product)
	return brand, product
}

func requestWithBrand(method, target string, body []byte, brand *domain.Brand) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return withBrandInContext(r, brand)
}

func withURLParam(r *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProvisionHandlerCreatesLicenses(t *testing.T) {
	f := newBrandFixture()
	brand, product := f.seedBrandAndProduct()

	body, _ := json.Marshal(map[string]any{
		"customer_email": "buyer@example.com",
		"products":       []string{product.ID.String()},
		"max_seats":      3,
	})
	req := requestWithBrand(http.MethodPost, "/api/v1/brand/license-keys", body, brand)
	rec := httptest.NewRecorder()

	f.h.Provision(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	licenses := resp["licenses"].([]any)
	assert.Len(t, licenses, 1)
}

func TestProvisionHandlerRejectsMissingProducts(t *testing.T) {
	f := newBrandFixture()
	brand, _ := f.seedBrandAndProduct()

	body, _ := json.Marshal(map[string]any{"customer_email": "buyer@example.com"})
	req := requestWithBrand(http.MethodPost, "/api/v1/brand/license-keys", body, brand)
	rec := httptest.NewRecorder()

	f.h.Provision(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProvisionHandlerRejectsInvalidEmail(t *testing.T) {
	f := newBrandFixture()
	brand, product := f.seedBrandAndProduct()

	body, _ := json.Marshal(map[string]any{
		"customer_email": "not-an-email",
		"products":       []string{product.ID.String()},
	})
	req := requestWithBrand(http.MethodPost, "/api/v1/brand/license-keys", body, brand)
	rec := httptest.NewRecorder()

	f.h.Provision(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenewSuspendResumeCancelHandlers(t *testing.T) {
	f := newBrandFixture()
	brand, product := f.seedBrandAndProduct()

	body, _ := json.Marshal(map[string]any{
		"customer_email": "buyer@example.com",
		"products":       []string{product.ID.String()},
		"max_seats":      1,
	})
	req := requestWithBrand(http.MethodPost, "/api/v1/brand/license-keys", body, brand)
	rec := httptest.NewRecorder()
	f.h.Provision(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var provisionResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &provisionResp))
	licenseID := provisionResp["licenses"].([]any)[0].(map[string]any)["id"].(string)

	// Suspend
	req = withURLParam(requestWithBrand(http.MethodPost, "/api/v1/brand/licenses/"+licenseID+"/suspend", nil, brand), "license_id", licenseID)
	rec = httptest.NewRecorder()
	f.h.Suspend(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dto licenseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, string(domain.StatusSuspended), dto.Status)

	// Resume
	req = withURLParam(requestWithBrand(http.MethodPost, "/api/v1/brand/licenses/"+licenseID+"/resume", nil, brand), "license_id", licenseID)
	rec = httptest.NewRecorder()
	f.h.Resume(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, string(domain.StatusValid), dto.Status)

	// Renew
	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	renewBody, _ := json.Marshal(map[string]any{"expiration_date": future.Format(time.RFC3339)})
	req = withURLParam(requestWithBrand(http.MethodPost, "/api/v1/brand/licenses/"+licenseID+"/renew", renewBody, brand), "license_id", licenseID)
	rec = httptest.NewRecorder()
	f.h.Renew(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Cancel
	req = withURLParam(requestWithBrand(http.MethodPost, "/api/v1/brand/licenses/"+licenseID+"/cancel", nil, brand), "license_id", licenseID)
	rec = httptest.NewRecorder()
	f.h.Cancel(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, string(domain.StatusCancelled), dto.Status)
}

func TestRenewHandlerRejectsMalformedLicenseID(t *testing.T) {
	f := newBrandFixture()
	brand, _ := f.seedBrandAndProduct()

	body, _ := json.Marshal(map[string]any{"expiration_date": time.Now().Add(time.Hour).Format(time.RFC3339)})
	req := withURLParam(requestWithBrand(http.MethodPost, "/api/v1/brand/licenses/not-a-uuid/renew", body, brand), "license_id", "not-a-uuid")
	rec := httptest.NewRecorder()

	f.h.Renew(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandlerRequiresEmailParam(t *testing.T) {
	f := newBrandFixture()
	brand, _ := f.seedBrandAndProduct()

	req := requestWithBrand(http.MethodGet, "/api/v1/brand/licenses", nil, brand)
	rec := httptest.NewRecorder()

	f.h.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandlerReturnsMatchingLicenses(t *testing.T) {
	f := newBrandFixture()
	brand, product := f.seedBrandAndProduct()

	body, _ := json.Marshal(map[string]any{
		"customer_email": "buyer@example.com",
		"products":       []string{product.ID.String()},
		"max_seats":      2,
	})
	req := requestWithBrand(http.MethodPost, "/api/v1/brand/license-keys", body, brand)
	rec := httptest.NewRecorder()
	f.h.Provision(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = requestWithBrand(http.MethodGet, "/api/v1/brand/licenses?email=buyer@example.com", nil, brand)
	rec = httptest.NewRecorder()
	f.h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["licenses"], 1)
}
