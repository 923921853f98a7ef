package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cliquesaude/internal/booking"
	"cliquesaude/internal/database"
	"cliquesaude/internal/models"
	"cliquesaude/internal/report"
)

// Wire DTOs. Storage carries integer cents; the public API keeps the legacy
// contract of amounts in reais.

type appointmentDTO struct {
	ID            string    `json:"id"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	PatientPhone  string    `json:"patient_phone,omitempty"`
	PatientCPF    string    `json:"patient_cpf,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   float64   `json:"total_amount"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Items         []itemDTO `json:"items"`
}

type itemDTO struct {
	ID              string               `json:"id"`
	AppointmentID   string               `json:"appointment_id"`
	ProfessionalID  string               `json:"professional_id"`
	ClinicID        string               `json:"clinic_id,omitempty"`
	SpecialtyID     string               `json:"specialty_id,omitempty"`
	AppointmentDate string               `json:"appointment_date"`
	AppointmentTime string               `json:"appointment_time"`
	AppointmentType string               `json:"appointment_type"`
	Price           float64              `json:"price"`
	Professional    *models.Professional `json:"professional,omitempty"`
	Clinic          *models.Clinic       `json:"clinic,omitempty"`
	Specialty       *models.Specialty    `json:"specialty,omitempty"`
}

func toReais(cents int64) float64 {
	return float64(cents) / 100
}

func aggregateDTO(agg *models.AppointmentAggregate) appointmentDTO {
	dto := appointmentDTO{
		ID:            agg.ID,
		PatientName:   agg.PatientName,
		PatientEmail:  agg.PatientEmail,
		PatientPhone:  agg.PatientPhone,
		PatientCPF:    agg.PatientCPF,
		PaymentMethod: agg.PaymentMethod,
		Status:        agg.Status,
		PaymentStatus: agg.PaymentStatus,
		TotalAmount:   toReais(agg.TotalCents),
		CreatedAt:     agg.CreatedAt,
		UpdatedAt:     agg.UpdatedAt,
		Items:         make([]itemDTO, 0, len(agg.Items)),
	}
	for _, item := range agg.Items {
		dto.Items = append(dto.Items, itemDTO{
			ID:              item.ID,
			AppointmentID:   item.AppointmentID,
			ProfessionalID:  item.ProfessionalID,
			ClinicID:        item.ClinicID.String,
			SpecialtyID:     item.SpecialtyID.String,
			AppointmentDate: item.AppointmentDate,
			AppointmentTime: item.AppointmentTime,
			AppointmentType: item.AppointmentType,
			Price:           toReais(item.PriceCents),
			Professional:    item.Professional,
			Clinic:          item.Clinic,
			Specialty:       item.Specialty,
		})
	}
	return dto
}

func headerDTO(a *models.Appointment) appointmentDTO {
	return aggregateDTO(&models.AppointmentAggregate{Appointment: *a, Items: nil})
}

func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createAppointment(w, r)
	case http.MethodGet:
		s.listAppointments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados obrigatórios faltando")
		return
	}

	result, err := s.svc.Create(r.Context(), &req)
	if err != nil {
		s.writeCreateError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"appointment": aggregateDTO(result.Aggregate),
	})
}

func (s *HTTPServer) writeCreateError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "Dados obrigatórios faltando")
		return
	}

	if errors.Is(err, database.ErrSlotTaken) {
		writeError(w, http.StatusConflict, "Horário indisponível para o profissional")
		return
	}

	var perr *booking.PersistenceError
	if errors.As(err, &perr) {
		message := "Erro ao criar agendamento"
		if perr.Step == booking.StepItems {
			message = "Erro ao criar itens do agendamento"
		}
		writeErrorDetails(w, http.StatusInternalServerError, message, perr.Err.Error())
		return
	}

	writeErrorDetails(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
}

func (s *HTTPServer) listAppointments(w http.ResponseWriter, r *http.Request) {
	statuses, err := booking.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		var ferr *booking.FilterError
		message := "Filtro de status inválido"
		if errors.As(err, &ferr) && ferr.Token != "" {
			message += ": " + ferr.Token
		}
		writeError(w, http.StatusBadRequest, message)
		return
	}

	aggregates, err := s.svc.List(r.Context(), statuses)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao buscar agendamentos", err.Error())
		return
	}

	dtos := make([]appointmentDTO, 0, len(aggregates))
	for _, agg := range aggregates {
		dtos = append(dtos, aggregateDTO(agg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": dtos})
}

func (s *HTTPServer) handleAppointmentByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/appointments/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getAppointment(w, r, id)
	case http.MethodPatch:
		s.updateAppointment(w, r, id)
	case http.MethodDelete:
		s.deleteAppointment(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getAppointment(w http.ResponseWriter, r *http.Request, id string) {
	agg, err := s.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Agendamento não encontrado")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao buscar agendamento", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": aggregateDTO(agg)})
}

func (s *HTTPServer) updateAppointment(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Status        *string `json:"status"`
		PaymentStatus *string `json:"payment_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	appointment, err := s.svc.UpdateStatus(r.Context(), id, body.Status, body.PaymentStatus)
	if err != nil {
		if errors.Is(err, database.ErrNoUpdates) {
			writeError(w, http.StatusBadRequest, "Nenhum campo para atualizar")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao atualizar agendamento", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"appointment": headerDTO(appointment),
	})
}

func (s *HTTPServer) deleteAppointment(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao deletar agendamento", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleProfessionals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		professionals, err := s.catalog.ListProfessionals(r.Context(), r.URL.Query().Get("specialty_id"))
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao buscar profissionais", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"professionals": professionals})
	case http.MethodPost:
		var p models.Professional
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if p.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := s.catalog.CreateProfessional(r.Context(), &p); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao criar profissional", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"professional": p})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleProfessionalByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/professionals/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.catalog.GetProfessional(r.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Profissional não encontrado")
				return
			}
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao buscar profissional", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"professional": p})
	case http.MethodDelete:
		if err := s.catalog.DeactivateProfessional(r.Context(), id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Profissional não encontrado")
				return
			}
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao remover profissional", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleClinics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		clinics, err := s.catalog.ListClinics(r.Context())
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao buscar clínicas", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clinics": clinics})
	case http.MethodPost:
		var c models.Clinic
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if c.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := s.catalog.CreateClinic(r.Context(), &c); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao criar clínica", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"clinic": c})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleClinicByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/clinics/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.catalog.DeactivateClinic(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Clínica não encontrada")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao remover clínica", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleSpecialties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		specialties, err := s.catalog.ListSpecialties(r.Context())
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao buscar especialidades", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"specialties": specialties})
	case http.MethodPost:
		var sp models.Specialty
		if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if sp.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := s.catalog.CreateSpecialty(r.Context(), &sp); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "Erro ao criar especialidade", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"specialty": sp})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAppointmentsReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, to, err := parseReportRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	aggregates, err := s.svc.ListCreatedBetween(r.Context(), from, to)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao gerar relatório", err.Error())
		return
	}

	workbook, err := report.BuildAppointmentsWorkbook(aggregates, from, to)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao gerar relatório", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.xlsx"`)
	if err := workbook.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("report write error")
	}
}

func parseReportRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now

	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date; expected YYYY-MM-DD")
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date; expected YYYY-MM-DD")
		}
		// inclusive end of day
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}

func pathID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
