package models

import (
	"database/sql"
	"time"
)

// Appointment is one patient's booking session. A single appointment may
// bundle several scheduled services (items). Money is carried in integer
// cents so item sums are exact.
type Appointment struct {
	ID            string    `json:"id"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	PatientPhone  string    `json:"patient_phone,omitempty"`
	PatientCPF    string    `json:"patient_cpf,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalCents    int64     `json:"total_cents"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AppointmentItem is one scheduled service inside an appointment. The price
// is copied from the professional's base price at submission time and never
// recomputed, so later catalog price changes cannot alter historical totals.
type AppointmentItem struct {
	ID              string         `json:"id"`
	AppointmentID   string         `json:"appointment_id"`
	ProfessionalID  string         `json:"professional_id"`
	ClinicID        sql.NullString `json:"-"`
	SpecialtyID     sql.NullString `json:"-"`
	AppointmentDate string         `json:"appointment_date"`
	AppointmentTime string         `json:"appointment_time"`
	AppointmentType string         `json:"appointment_type"`
	PriceCents      int64          `json:"price_cents"`
}

// ItemDetail is an item with its catalog references resolved.
type ItemDetail struct {
	AppointmentItem
	Professional *Professional `json:"professional,omitempty"`
	Clinic       *Clinic       `json:"clinic,omitempty"`
	Specialty    *Specialty    `json:"specialty,omitempty"`
}

// AppointmentAggregate is the denormalized read model returned after a
// successful booking: header plus items with joined catalog data.
type AppointmentAggregate struct {
	Appointment
	Items []ItemDetail `json:"items"`
}
