package booking

import (
	"context"

	"cliquesaude/internal/domain"
	"cliquesaude/internal/models"

	"github.com/rs/zerolog"
)

// SagaState tracks how far the two-phase write got and, on failure, whether
// the compensating delete managed to undo the header.
type SagaState int

const (
	SagaPending SagaState = iota
	SagaCreated
	SagaItemsWritten
	SagaFailedCompensated
	SagaFailedUncompensated
)

func (s SagaState) String() string {
	switch s {
	case SagaPending:
		return "pending"
	case SagaCreated:
		return "created"
	case SagaItemsWritten:
		return "items_written"
	case SagaFailedCompensated:
		return "failed_compensated"
	case SagaFailedUncompensated:
		return "failed_uncompensated"
	default:
		return "unknown"
	}
}

// SagaResult reports the terminal state of one run. CompensationErr is only
// set in the uncompensated failure state; it is informational and never the
// primary error, since masking the root cause with a cleanup failure would
// be worse for callers than an orphaned header swept later.
type SagaResult struct {
	State           SagaState
	Appointment     *models.Appointment
	CompensationErr error
}

// Saga persists an appointment header and its items as one logical unit on
// a store without multi-table transactions. The header insert has no
// compensation (nothing was written before it); an item failure triggers a
// best-effort delete of the header.
type Saga struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewSaga(repo domain.Repository, logger *zerolog.Logger) *Saga {
	return &Saga{repo: repo, logger: logger}
}

func (s *Saga) Run(ctx context.Context, appointment *models.Appointment, items []models.AppointmentItem) (SagaResult, error) {
	result := SagaResult{State: SagaPending, Appointment: appointment}

	if err := s.repo.CreateAppointment(ctx, appointment); err != nil {
		return result, &PersistenceError{Step: StepAppointment, Err: err}
	}
	result.State = SagaCreated

	if err := s.repo.InsertAppointmentItems(ctx, items); err != nil {
		result = s.compensate(ctx, result)
		return result, &PersistenceError{Step: StepItems, Err: err}
	}
	result.State = SagaItemsWritten

	return result, nil
}

func (s *Saga) compensate(ctx context.Context, result SagaResult) SagaResult {
	if err := s.repo.DeleteAppointment(ctx, result.Appointment.ID); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", result.Appointment.ID).
			Msg("compensating delete failed, orphaned header left behind")
		result.State = SagaFailedUncompensated
		result.CompensationErr = err
		return result
	}

	s.logger.Warn().
		Str("appointment_id", result.Appointment.ID).
		Msg("item insert failed, header rolled back")
	result.State = SagaFailedCompensated
	return result
}
