package domain

import (
	"context"
	"time"

	"cliquesaude/internal/models"
)

type Repository interface {
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	InsertAppointmentItems(ctx context.Context, items []models.AppointmentItem) error
	DeleteAppointment(ctx context.Context, id string) error
	UpdateAppointmentStatus(ctx context.Context, id string, status, paymentStatus *string) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetAppointmentAggregate(ctx context.Context, id string) (*models.AppointmentAggregate, error)
	ListAppointments(ctx context.Context, statuses []string) ([]*models.AppointmentAggregate, error)
	ListAppointmentsCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.AppointmentAggregate, error)
	CountItemsForSlot(ctx context.Context, professionalID, date, timeOfDay string) (int, error)
}

type CatalogRepository interface {
	CreateProfessional(ctx context.Context, p *models.Professional) error
	GetProfessional(ctx context.Context, id string) (*models.Professional, error)
	ListProfessionals(ctx context.Context, specialtyID string) ([]*models.Professional, error)
	DeactivateProfessional(ctx context.Context, id string) error
	CreateClinic(ctx context.Context, c *models.Clinic) error
	ListClinics(ctx context.Context) ([]*models.Clinic, error)
	DeactivateClinic(ctx context.Context, id string) error
	CreateSpecialty(ctx context.Context, s *models.Specialty) error
	ListSpecialties(ctx context.Context) ([]*models.Specialty, error)
}

type SessionRepository interface {
	GetSession(ctx context.Context, subjectID string) (*models.SessionContext, error)
	SetSession(ctx context.Context, session *models.SessionContext) error
	ClearSession(ctx context.Context, subjectID string) error
	CheckRateLimit(ctx context.Context, subjectID string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appointmentID string, appointment *models.AppointmentAggregate, status string) error
}

type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appointment *models.AppointmentAggregate) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
	DeleteAppointmentRow(ctx context.Context, appointmentID string) error
}

type Notifier interface {
	Notify(text string) error
}
