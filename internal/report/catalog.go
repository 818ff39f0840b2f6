// Package report exports the story archive as an Excel catalog.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/historias/internal/models"
)

// Sheet names of the catalog workbook.
const (
	StoriesSheet = "Historias"
	SummarySheet = "Resumen"
)

// excelCellLimit is the maximum length of a cell's text.
const excelCellLimit = 32767

var storyColumns = []struct {
	header string
	width  float64
	value  func(*models.Record) any
}{
	{"Fecha", 20, func(r *models.Record) any { return r.CreatedAt.String() }},
	{"Título", 36, func(r *models.Record) any { return r.DisplayTitle() }},
	{"Plataforma", 14, func(r *models.Record) any { return string(r.Platform) }},
	{"Tono", 14, func(r *models.Record) any { return r.Tone }},
	{"Formato", 10, func(r *models.Record) any { return string(r.FileType) }},
	{"Archivo", 32, func(r *models.Record) any { return r.Filename }},
	{"Gancho", 40, func(r *models.Record) any { return r.Content.Hook }},
	{"Párrafos", 10, func(r *models.Record) any { return len(r.Content.Body) }},
	{"Llamada a la Acción", 40, func(r *models.Record) any { return r.Content.CallToAction }},
	{"Hashtags", 30, func(r *models.Record) any { return strings.Join(r.Content.Hashtags, " ") }},
	{"Texto Completo", 60, func(r *models.Record) any { return r.Content.FullText }},
}

// WriteCatalog writes one row per record plus a summary sheet with counts by
// platform and by format.
func WriteCatalog(w io.Writer, records []*models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StoriesSheet); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		return err
	}

	for i, col := range storyColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(StoriesSheet, cell, col.header); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(StoriesSheet, name, name, col.width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(storyColumns), 1)
	if err := f.SetCellStyle(StoriesSheet, "A1", last, header); err != nil {
		return err
	}

	for row, rec := range records {
		for i, col := range storyColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, row+2)
			v := col.value(rec)
			if s, ok := v.(string); ok && len(s) > excelCellLimit {
				v = s[:excelCellLimit]
			}
			if err := f.SetCellValue(StoriesSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}
	if len(records) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(storyColumns), len(records)+1)
		if err := f.AutoFilter(StoriesSheet, "A1:"+end, nil); err != nil {
			return err
		}
	}

	if err := writeSummary(f, records, header); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func writeSummary(f *excelize.File, records []*models.Record, header int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	byPlatform := map[string]int{}
	byFormat := map[string]int{}
	for _, rec := range records {
		byPlatform[orNone(string(rec.Platform))]++
		byFormat[orNone(string(rec.FileType))]++
	}

	row := 1
	write := func(a, b any) error {
		if err := f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", row), a); err != nil {
			return err
		}
		if err := f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", row), b); err != nil {
			return err
		}
		row++
		return nil
	}
	section := func(title string, counts map[string]int) error {
		if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), header); err != nil {
			return err
		}
		if err := write(title, "Historias"); err != nil {
			return err
		}
		for _, k := range sortedKeys(counts) {
			if err := write(k, counts[k]); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	if err := write("Total", len(records)); err != nil {
		return err
	}
	row++
	if err := section("Plataforma", byPlatform); err != nil {
		return err
	}
	if err := section("Formato", byFormat); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "A", 20)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return "(sin dato)"
	}
	return s
}
