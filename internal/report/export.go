package report

import (
	"fmt"
	"time"

	"cliquesaude/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Agendamentos"

// BuildAppointmentsWorkbook renders one row per appointment item, with a
// period header and a totals row at the bottom. The caller owns closing or
// writing the returned file.
func BuildAppointmentsWorkbook(aggregates []*models.AppointmentAggregate, from, to time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Período: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "I1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{
		"Paciente", "Email", "Profissional", "Clínica",
		"Data", "Hora", "Modalidade", "Preço (R$)", "Pagamento",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	var totalCents int64
	for _, agg := range aggregates {
		for _, item := range agg.Items {
			professional := item.ProfessionalID
			if item.Professional != nil {
				professional = item.Professional.Name
			}
			clinic := ""
			if item.Clinic != nil {
				clinic = item.Clinic.Name
			}

			values := []interface{}{
				agg.PatientName,
				agg.PatientEmail,
				professional,
				clinic,
				item.AppointmentDate,
				item.AppointmentTime,
				item.AppointmentType,
				float64(item.PriceCents) / 100,
				agg.PaymentStatus,
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				_ = f.SetCellValue(sheetName, cell, v)
			}
			totalCents += item.PriceCents
			row++
		}
	}

	totalLabelCell, _ := excelize.CoordinatesToCellName(7, row)
	totalValueCell, _ := excelize.CoordinatesToCellName(8, row)
	_ = f.SetCellValue(sheetName, totalLabelCell, "Total")
	_ = f.SetCellValue(sheetName, totalValueCell, float64(totalCents)/100)

	totalStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, totalLabelCell, totalValueCell, totalStyle)

	_ = f.SetColWidth(sheetName, "A", "B", 28)
	_ = f.SetColWidth(sheetName, "C", "I", 18)

	_ = f.DeleteSheet("Sheet1")

	return f, nil
}
