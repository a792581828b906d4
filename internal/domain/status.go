package domain

import "github.com/google/uuid"

// LicenseStatusEntry is one license's contribution to a GetLicenseStatus
// response.
type LicenseStatusEntry struct {
	LicenseID      uuid.UUID `json:"license_id"`
	ProductName    string    `json:"product_name"`
	ProductSlug    string    `json:"product_slug"`
	Status         Status    `json:"status"`
	SeatLimit      int       `json:"seat_limit"`
	SeatsUsed      int       `json:"seats_used"`
	SeatsRemaining int       `json:"seats_remaining"`
	ExpiresAt      *string   `json:"expires_at,omitempty"`
}

// LicenseStatus is the full aggregate returned by GetLicenseStatus and the
// value cached under a fingerprinted key in the status cache.
type LicenseStatus struct {
	LicenseKeyID        uuid.UUID             `json:"license_key_id"`
	Licenses            []LicenseStatusEntry  `json:"licenses"`
	TotalSeatsUsed       int                  `json:"total_seats_used"`
	TotalSeatsAvailable  int                  `json:"total_seats_available"`
	IsValid              bool                 `json:"is_valid"`
}
