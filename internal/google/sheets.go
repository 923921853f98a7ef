package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cliquesaude/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const appointmentsSheet = "Appointments"

var errRowNotFound = errors.New("appointment row not found")

// SheetsService mirrors appointments into the back-office spreadsheet. One
// row per appointment; the row index cache avoids a column scan per update.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		service.WarmUpCache(ctx)
	}()

	return service, nil
}

// TestConnection reads the first cell to verify credentials and access.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id != "" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// UpsertAppointment updates the existing row or appends a new one.
func (s *SheetsService) UpsertAppointment(ctx context.Context, appointment *models.AppointmentAggregate) error {
	if appointment == nil {
		return fmt.Errorf("appointment is nil")
	}

	rowIdx, err := s.findRow(ctx, appointment.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.appendAppointment(ctx, appointment)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:I%d", appointmentsSheet, rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appointment)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (s *SheetsService) appendAppointment(ctx context.Context, appointment *models.AppointmentAggregate) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appointment)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, appointmentsSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// DeleteAppointmentRow clears the row for an appointment id.
func (s *SheetsService) DeleteAppointmentRow(ctx context.Context, appointmentID string) error {
	rowIdx, err := s.findRow(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return nil
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:I%d", appointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCacheRow(appointmentID)
	}
	return err
}

// UpdateAppointmentStatus updates the status and updated-at cells in place.
func (s *SheetsService) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	rowIdx, err := s.findRow(ctx, appointmentID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!D%d:D%d", appointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	updatedRange := fmt.Sprintf("%s!I%d:I%d", appointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{now}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// findRow locates the 1-based row index for an appointment id in column A.
func (s *SheetsService) findRow(ctx context.Context, appointmentID string) (int, error) {
	if appointmentID == "" {
		return 0, fmt.Errorf("appointment id is required")
	}

	if row, ok := s.getCachedRow(appointmentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id == appointmentID {
			rowIdx := i + 1
			s.setCachedRow(appointmentID, rowIdx)
			return rowIdx, nil
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func appointmentRowValues(appointment *models.AppointmentAggregate) []interface{} {
	var itemParts []string
	for _, item := range appointment.Items {
		name := item.ProfessionalID
		if item.Professional != nil {
			name = item.Professional.Name
		}
		itemParts = append(itemParts, fmt.Sprintf("%s %s %s", name, item.AppointmentDate, item.AppointmentTime))
	}

	return []interface{}{
		appointment.ID,
		appointment.PatientName,
		appointment.PatientEmail,
		appointment.Status,
		appointment.PaymentStatus,
		float64(appointment.TotalCents) / 100,
		strings.Join(itemParts, "; "),
		appointment.CreatedAt.Format("2006-01-02 15:04:05"),
		appointment.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
