package models

import "time"

// Professional is a bookable doctor or independent practitioner. Owned by
// the admin catalog; the booking core only reads it.
type Professional struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SpecialtyID    string    `json:"specialty_id,omitempty"`
	BasePriceCents int64     `json:"base_price_cents"`
	AcceptsOnline  bool      `json:"accepts_online"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type Clinic struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Specialty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
