package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cliquesaude/internal/models"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	query := `INSERT INTO appointments (
				id, patient_name, patient_email, patient_phone, patient_cpf,
				payment_method, status, payment_status, total_cents, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		a.ID,
		a.PatientName,
		a.PatientEmail,
		a.PatientPhone,
		a.PatientCPF,
		a.PaymentMethod,
		a.Status,
		a.PaymentStatus,
		a.TotalCents,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// InsertAppointmentItems writes all items of one appointment in a single
// statement so either the whole batch lands or none of it does.
func (db *DB) InsertAppointmentItems(ctx context.Context, items []models.AppointmentItem) error {
	if len(items) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO appointment_items (
		id, appointment_id, professional_id, clinic_id, specialty_id,
		appointment_date, appointment_time, appointment_type, price_cents) VALUES `)

	args := make([]interface{}, 0, len(items)*9)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			item.ID,
			item.AppointmentID,
			item.ProfessionalID,
			item.ClinicID,
			item.SpecialtyID,
			item.AppointmentDate,
			item.AppointmentTime,
			item.AppointmentType,
			item.PriceCents,
		)
	}

	if _, err := db.ExecContext(ctx, sb.String(), args...); err != nil {
		if isSlotConflict(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert appointment items: %w", err)
	}
	return nil
}

// isSlotConflict matches only the unique index on (professional_id,
// appointment_date, appointment_time). Other unique violations, like a
// duplicate item id, surface as plain errors.
func isSlotConflict(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return strings.Contains(serr.Error(), "appointment_items.professional_id")
}

func (db *DB) DeleteAppointment(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAppointmentStatus applies only the fields that are present.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id string, status, paymentStatus *string) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}
	if status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *status)
	}
	if paymentStatus != nil {
		sets = append(sets, "payment_status = ?")
		args = append(args, *paymentStatus)
	}
	if status == nil && paymentStatus == nil {
		return ErrNoUpdates
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE appointments SET %s WHERE id = ?`, strings.Join(sets, ", "))
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const appointmentColumns = `id, patient_name, patient_email, patient_phone, patient_cpf,
	payment_method, status, payment_status, total_cents, created_at, updated_at`

func scanAppointment(row interface{ Scan(...interface{}) error }) (*models.Appointment, error) {
	var (
		a             models.Appointment
		phone, cpf    sql.NullString
		paymentMethod sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.PatientName, &a.PatientEmail, &phone, &cpf,
		&paymentMethod, &a.Status, &a.PaymentStatus, &a.TotalCents, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.PatientPhone = phone.String
	a.PatientCPF = cpf.String
	a.PaymentMethod = paymentMethod.String
	return &a, nil
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	a, err := scanAppointment(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

// GetAppointmentAggregate returns the header with items and joined catalog
// rows. Clinic and specialty are optional per item.
func (db *DB) GetAppointmentAggregate(ctx context.Context, id string) (*models.AppointmentAggregate, error) {
	header, err := db.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	itemsByAppointment, err := db.queryItemDetails(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	agg := &models.AppointmentAggregate{Appointment: *header, Items: itemsByAppointment[id]}
	if agg.Items == nil {
		agg.Items = []models.ItemDetail{}
	}
	return agg, nil
}

// ListAppointments returns aggregates newest-created-first, optionally
// restricted to a status set. An empty set means no filter.
func (db *DB) ListAppointments(ctx context.Context, statuses []string) ([]*models.AppointmentAggregate, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	var args []interface{}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
		query += ` WHERE status IN (` + placeholders + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY created_at DESC`

	return db.queryAggregates(ctx, query, args...)
}

// ListAppointmentsCreatedBetween feeds the back-office report export.
func (db *DB) ListAppointmentsCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.AppointmentAggregate, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC`
	return db.queryAggregates(ctx, query, from, to)
}

func (db *DB) queryAggregates(ctx context.Context, query string, args ...interface{}) ([]*models.AppointmentAggregate, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var aggs []*models.AppointmentAggregate
	var ids []string
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		aggs = append(aggs, &models.AppointmentAggregate{Appointment: *a, Items: []models.ItemDetail{}})
		ids = append(ids, a.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	if len(aggs) == 0 {
		return []*models.AppointmentAggregate{}, nil
	}

	itemsByAppointment, err := db.queryItemDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, agg := range aggs {
		if items, ok := itemsByAppointment[agg.ID]; ok {
			agg.Items = items
		}
	}
	return aggs, nil
}

func (db *DB) queryItemDetails(ctx context.Context, appointmentIDs []string) (map[string][]models.ItemDetail, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(appointmentIDs)), ", ")
	query := `SELECT i.id, i.appointment_id, i.professional_id, i.clinic_id, i.specialty_id,
			i.appointment_date, i.appointment_time, i.appointment_type, i.price_cents,
			p.id, p.name, p.specialty_id, p.base_price_cents, p.accepts_online, p.active, p.created_at,
			c.id, c.name, c.address, c.city, c.active, c.created_at,
			s.id, s.name
		FROM appointment_items i
		LEFT JOIN professionals p ON p.id = i.professional_id
		LEFT JOIN clinics c ON c.id = i.clinic_id
		LEFT JOIN specialties s ON s.id = i.specialty_id
		WHERE i.appointment_id IN (` + placeholders + `)
		ORDER BY i.appointment_date, i.appointment_time`

	args := make([]interface{}, len(appointmentIDs))
	for i, id := range appointmentIDs {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointment items: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.ItemDetail)
	for rows.Next() {
		var (
			d models.ItemDetail

			profID, profName, profSpecialty       sql.NullString
			profPrice                             sql.NullInt64
			profOnline, profActive                sql.NullBool
			profCreated                           sql.NullTime
			clinID, clinName, clinAddr, clinCity  sql.NullString
			clinActive                            sql.NullBool
			clinCreated                           sql.NullTime
			specID, specName                      sql.NullString
		)
		err := rows.Scan(
			&d.ID, &d.AppointmentID, &d.ProfessionalID, &d.ClinicID, &d.SpecialtyID,
			&d.AppointmentDate, &d.AppointmentTime, &d.AppointmentType, &d.PriceCents,
			&profID, &profName, &profSpecialty, &profPrice, &profOnline, &profActive, &profCreated,
			&clinID, &clinName, &clinAddr, &clinCity, &clinActive, &clinCreated,
			&specID, &specName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment item: %w", err)
		}

		if profID.Valid {
			d.Professional = &models.Professional{
				ID:             profID.String,
				Name:           profName.String,
				SpecialtyID:    profSpecialty.String,
				BasePriceCents: profPrice.Int64,
				AcceptsOnline:  profOnline.Bool,
				Active:         profActive.Bool,
				CreatedAt:      profCreated.Time,
			}
		}
		if clinID.Valid {
			d.Clinic = &models.Clinic{
				ID:        clinID.String,
				Name:      clinName.String,
				Address:   clinAddr.String,
				City:      clinCity.String,
				Active:    clinActive.Bool,
				CreatedAt: clinCreated.Time,
			}
		}
		if specID.Valid {
			d.Specialty = &models.Specialty{ID: specID.String, Name: specName.String}
		}

		result[d.AppointmentID] = append(result[d.AppointmentID], d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointment items: %w", err)
	}
	return result, nil
}

// CountItemsForSlot returns how many active items already occupy the slot.
func (db *DB) CountItemsForSlot(ctx context.Context, professionalID, date, timeOfDay string) (int, error) {
	query := `SELECT COUNT(*) FROM appointment_items i
		JOIN appointments a ON a.id = i.appointment_id
		WHERE i.professional_id = ? AND i.appointment_date = ? AND i.appointment_time = ?
		AND a.status IN (?, ?)`
	var count int
	err := db.QueryRowContext(ctx, query, professionalID, date, timeOfDay,
		models.StatusPending, models.StatusConfirmed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count slot items: %w", err)
	}
	return count, nil
}
