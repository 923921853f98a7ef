package booking

import (
	"fmt"
	"strings"
)

// Validate rejects a structurally invalid request before any write. The
// base contract checks patient name, email and a non-empty item list; with
// strict pricing on, each item must also carry professional/date/time and a
// positive numeric price.
func Validate(req *Request, strictPricing bool) error {
	if strings.TrimSpace(req.PatientName) == "" {
		return &ValidationError{Reason: "patient_name is required"}
	}
	if strings.TrimSpace(req.PatientEmail) == "" {
		return &ValidationError{Reason: "patient_email is required"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Reason: "items is required"}
	}

	if !strictPricing {
		return nil
	}

	for i, item := range req.Items {
		if strings.TrimSpace(item.ProfessionalID) == "" {
			return &ValidationError{Reason: itemField(i, "professional_id")}
		}
		if strings.TrimSpace(item.AppointmentDate) == "" {
			return &ValidationError{Reason: itemField(i, "appointment_date")}
		}
		if strings.TrimSpace(item.AppointmentTime) == "" {
			return &ValidationError{Reason: itemField(i, "appointment_time")}
		}
		cents, ok := PriceCents(item.Price)
		if !ok || cents <= 0 {
			return &ValidationError{Reason: fmt.Sprintf("items[%d]: price must be a positive number", i)}
		}
	}
	return nil
}

func itemField(index int, field string) string {
	return fmt.Sprintf("items[%d]: %s is required", index, field)
}
