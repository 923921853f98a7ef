package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cliquesaude/internal/models"
)

// Catalog tables are owned by the admin back-office; the booking core only
// reads them for the aggregate joins.

func (db *DB) CreateProfessional(ctx context.Context, p *models.Professional) error {
	query := `INSERT INTO professionals (id, name, specialty_id, base_price_cents, accepts_online, active, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query, p.ID, p.Name, nullString(p.SpecialtyID), p.BasePriceCents, p.AcceptsOnline, p.Active, now)
	if err != nil {
		return fmt.Errorf("failed to create professional: %w", err)
	}
	p.CreatedAt = now
	return nil
}

func (db *DB) GetProfessional(ctx context.Context, id string) (*models.Professional, error) {
	query := `SELECT id, name, specialty_id, base_price_cents, accepts_online, active, created_at
              FROM professionals WHERE id = ?`
	var (
		p         models.Professional
		specialty sql.NullString
	)
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &specialty, &p.BasePriceCents, &p.AcceptsOnline, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get professional: %w", err)
	}
	p.SpecialtyID = specialty.String
	return &p, nil
}

// ListProfessionals returns active professionals, optionally filtered by
// specialty.
func (db *DB) ListProfessionals(ctx context.Context, specialtyID string) ([]*models.Professional, error) {
	query := `SELECT id, name, specialty_id, base_price_cents, accepts_online, active, created_at
              FROM professionals WHERE active = 1`
	var args []interface{}
	if specialtyID != "" {
		query += ` AND specialty_id = ?`
		args = append(args, specialtyID)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}
	defer rows.Close()

	var professionals []*models.Professional
	for rows.Next() {
		var (
			p         models.Professional
			specialty sql.NullString
		)
		err := rows.Scan(&p.ID, &p.Name, &specialty, &p.BasePriceCents, &p.AcceptsOnline, &p.Active, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan professional: %w", err)
		}
		p.SpecialtyID = specialty.String
		professionals = append(professionals, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate professionals: %w", err)
	}
	return professionals, nil
}

func (db *DB) DeactivateProfessional(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `UPDATE professionals SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate professional: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CreateClinic(ctx context.Context, c *models.Clinic) error {
	query := `INSERT INTO clinics (id, name, address, city, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query, c.ID, c.Name, nullString(c.Address), nullString(c.City), c.Active, now)
	if err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	c.CreatedAt = now
	return nil
}

func (db *DB) ListClinics(ctx context.Context) ([]*models.Clinic, error) {
	query := `SELECT id, name, address, city, active, created_at FROM clinics WHERE active = 1 ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	defer rows.Close()

	var clinics []*models.Clinic
	for rows.Next() {
		var (
			c             models.Clinic
			address, city sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &address, &city, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan clinic: %w", err)
		}
		c.Address = address.String
		c.City = city.String
		clinics = append(clinics, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clinics: %w", err)
	}
	return clinics, nil
}

func (db *DB) DeactivateClinic(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `UPDATE clinics SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate clinic: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CreateSpecialty(ctx context.Context, s *models.Specialty) error {
	_, err := db.ExecContext(ctx, `INSERT INTO specialties (id, name) VALUES (?, ?)`, s.ID, s.Name)
	if err != nil {
		return fmt.Errorf("failed to create specialty: %w", err)
	}
	return nil
}

func (db *DB) ListSpecialties(ctx context.Context) ([]*models.Specialty, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM specialties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list specialties: %w", err)
	}
	defer rows.Close()

	var specialties []*models.Specialty
	for rows.Next() {
		var s models.Specialty
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan specialty: %w", err)
		}
		specialties = append(specialties, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate specialties: %w", err)
	}
	return specialties, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
