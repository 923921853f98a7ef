package booking

// Request is an incoming booking, decoded straight from the POST body.
// Price is deliberately untyped: callers send numbers, but historically
// strings and missing values also arrived, and the calculator decides what
// to do with those (see Total).
type Request struct {
	PatientName   string        `json:"patient_name"`
	PatientEmail  string        `json:"patient_email"`
	PatientPhone  string        `json:"patient_phone"`
	PatientCPF    string        `json:"patient_cpf"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus string        `json:"payment_status"`
	Status        string        `json:"status"`
	Items         []ItemRequest `json:"items"`
}

type ItemRequest struct {
	ProfessionalID  string      `json:"professional_id"`
	ClinicID        string      `json:"clinic_id"`
	SpecialtyID     string      `json:"specialty_id"`
	AppointmentDate string      `json:"appointment_date"`
	AppointmentTime string      `json:"appointment_time"`
	AppointmentType string      `json:"appointment_type"`
	Price           interface{} `json:"price"`
}
