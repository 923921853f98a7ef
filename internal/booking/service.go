package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cliquesaude/internal/database"
	"cliquesaude/internal/domain"
	"cliquesaude/internal/events"
	"cliquesaude/internal/metrics"
	"cliquesaude/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options tune the service's two configurable behaviors. Defaults match the
// permissive legacy contract: prices coerce to zero and double bookings are
// not rejected.
type Options struct {
	StrictPricing    bool
	AllowSlotOverlap bool
}

// Service is the booking core: validation, total calculation, the
// compensating-write saga, and the appointment lifecycle around it. It is
// authorization-agnostic; the API gateway decides who may call what.
type Service struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	worker   domain.SyncWorker
	opts     Options
	saga     *Saga
	logger   *zerolog.Logger
}

func NewService(repo domain.Repository, eventBus domain.EventPublisher, worker domain.SyncWorker, opts Options, logger *zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		worker:   worker,
		opts:     opts,
		saga:     NewSaga(repo, logger),
		logger:   logger,
	}
}

// CreateResult is what a successful booking hands back. Degraded means the
// write succeeded but the aggregate read did not, so only header fields are
// populated.
type CreateResult struct {
	Aggregate *models.AppointmentAggregate
	SagaState SagaState
	Degraded  bool
}

// Create runs the full booking flow: validate, compute the total, persist
// header then items with compensation on partial failure, then read the
// aggregate back. No retries happen here; a failed write is reported
// immediately and retry policy belongs to the caller.
func (s *Service) Create(ctx context.Context, req *Request) (*CreateResult, error) {
	if err := Validate(req, s.opts.StrictPricing); err != nil {
		return nil, err
	}
	if !s.opts.AllowSlotOverlap {
		if err := s.checkSlots(ctx, req.Items); err != nil {
			return nil, err
		}
	}

	appointment := s.buildAppointment(req)
	items := s.buildItems(appointment.ID, req.Items)

	result, err := s.saga.Run(ctx, appointment, items)
	if err != nil {
		s.observeFailure(result, err)
		return nil, err
	}

	metrics.IncAppointmentsCreated()
	metrics.AddAppointmentItems(len(items))
	s.publishEvent(events.EventAppointmentCreated, appointment, len(items), "")
	s.enqueueSync(ctx, models.TaskUpsert, appointment.ID, "")

	aggregate, err := s.repo.GetAppointmentAggregate(ctx, appointment.ID)
	if err != nil {
		// The write already succeeded; a transient read must not turn the
		// booking into a failure from the client's point of view.
		s.logger.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("aggregate read failed, returning header only")
		headerOnly := &models.AppointmentAggregate{Appointment: *appointment, Items: []models.ItemDetail{}}
		return &CreateResult{Aggregate: headerOnly, SagaState: result.State, Degraded: true}, nil
	}

	return &CreateResult{Aggregate: aggregate, SagaState: result.State}, nil
}

// checkSlots rejects requests aiming at a slot an active appointment already
// holds. Unlike the unique index it ignores cancelled appointments, so a
// freed slot can be rebooked. The check is advisory: a storage error here
// falls through to the index, which still backstops the insert.
func (s *Service) checkSlots(ctx context.Context, items []ItemRequest) error {
	for _, item := range items {
		count, err := s.repo.CountItemsForSlot(ctx, item.ProfessionalID, item.AppointmentDate, item.AppointmentTime)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("professional_id", item.ProfessionalID).
				Msg("slot availability check failed, relying on the unique index")
			continue
		}
		if count > 0 {
			return database.ErrSlotTaken
		}
	}
	return nil
}

func (s *Service) buildAppointment(req *Request) *models.Appointment {
	status := req.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = models.PaymentPaid
	}

	return &models.Appointment{
		ID:            uuid.NewString(),
		PatientName:   req.PatientName,
		PatientEmail:  req.PatientEmail,
		PatientPhone:  req.PatientPhone,
		PatientCPF:    req.PatientCPF,
		PaymentMethod: req.PaymentMethod,
		Status:        status,
		PaymentStatus: paymentStatus,
		TotalCents:    Total(req.Items),
	}
}

func (s *Service) buildItems(appointmentID string, reqs []ItemRequest) []models.AppointmentItem {
	items := make([]models.AppointmentItem, 0, len(reqs))
	for i, req := range reqs {
		cents, ok := PriceCents(req.Price)
		if !ok {
			s.logger.Warn().Int("item", i).Interface("price", req.Price).Msg("malformed item price coerced to zero")
		}

		appointmentType := req.AppointmentType
		if appointmentType == "" {
			appointmentType = models.TypePresencial
		}

		items = append(items, models.AppointmentItem{
			ID:              uuid.NewString(),
			AppointmentID:   appointmentID,
			ProfessionalID:  req.ProfessionalID,
			ClinicID:        nullable(req.ClinicID),
			SpecialtyID:     nullable(req.SpecialtyID),
			AppointmentDate: req.AppointmentDate,
			AppointmentTime: req.AppointmentTime,
			AppointmentType: appointmentType,
			PriceCents:      cents,
		})
	}
	return items
}

func (s *Service) observeFailure(result SagaResult, err error) {
	var perr *PersistenceError
	step := StepAppointment
	if errors.As(err, &perr) {
		step = perr.Step
	}
	metrics.IncBookingFailure(step)

	switch result.State {
	case SagaFailedCompensated:
		metrics.IncCompensation("compensated")
	case SagaFailedUncompensated:
		metrics.IncCompensation("uncompensated")
		s.publishEvent(events.EventCompensationFailed, result.Appointment, 0, result.CompensationErr.Error())
	}
}

// Get returns the full aggregate for one appointment.
func (s *Service) Get(ctx context.Context, id string) (*models.AppointmentAggregate, error) {
	return s.repo.GetAppointmentAggregate(ctx, id)
}

// List returns aggregates newest-first for the given status set (nil means
// all).
func (s *Service) List(ctx context.Context, statuses []string) ([]*models.AppointmentAggregate, error) {
	return s.repo.ListAppointments(ctx, statuses)
}

// ListCreatedBetween feeds the report export.
func (s *Service) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.AppointmentAggregate, error) {
	return s.repo.ListAppointmentsCreatedBetween(ctx, from, to)
}

// UpdateStatus applies the fields present and returns the updated record.
func (s *Service) UpdateStatus(ctx context.Context, id string, status, paymentStatus *string) (*models.Appointment, error) {
	if err := s.repo.UpdateAppointmentStatus(ctx, id, status, paymentStatus); err != nil {
		return nil, err
	}

	appointment, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventAppointmentStatusChanged, appointment, 0, "")
	if appointment.Status == models.StatusCancelled {
		s.publishEvent(events.EventAppointmentCancelled, appointment, 0, "")
	}
	newStatus := appointment.Status
	s.enqueueSync(ctx, models.TaskUpdateStatus, id, newStatus)
	return appointment, nil
}

// Delete removes an appointment; the storage layer cascades its items.
func (s *Service) Delete(ctx context.Context, id string) error {
	appointment, err := s.repo.GetAppointment(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return err
	}

	if appointment != nil {
		s.publishEvent(events.EventAppointmentDeleted, appointment, 0, "")
	}
	s.enqueueSync(ctx, models.TaskDelete, id, "")
	return nil
}

func (s *Service) publishEvent(eventType string, appointment *models.Appointment, itemCount int, detail string) {
	if s.eventBus == nil || appointment == nil {
		return
	}

	payload := events.AppointmentEventPayload{
		AppointmentID: appointment.ID,
		PatientName:   appointment.PatientName,
		Status:        appointment.Status,
		PaymentStatus: appointment.PaymentStatus,
		TotalCents:    appointment.TotalCents,
		ItemCount:     itemCount,
		Detail:        detail,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appointment.ID).Msg("publish event error")
	}
}

func (s *Service) enqueueSync(ctx context.Context, taskType, appointmentID, status string) {
	if s.worker == nil {
		return
	}

	var aggregate *models.AppointmentAggregate
	if taskType == models.TaskUpsert {
		agg, err := s.repo.GetAppointmentAggregate(ctx, appointmentID)
		if err != nil {
			s.logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("sync snapshot read error")
			return
		}
		aggregate = agg
	}

	if err := s.worker.EnqueueTask(ctx, taskType, appointmentID, aggregate, status); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appointmentID).Str("task", taskType).Msg("sync enqueue error")
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
