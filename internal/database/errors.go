package database

import "errors"

var (
	// ErrNotFound is returned when an update or delete matches no row.
	ErrNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned when an item insert collides with the unique
	// (professional, date, time) index.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrNoUpdates is returned when a partial update carries no fields.
	ErrNoUpdates = errors.New("no fields to update")
)
