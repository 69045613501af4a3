package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

const (
	surveyTimeColumn = "Date/Time"
	surveyNameColumn = "Name"
	surveyAgeColumn  = "Age"
)

// RawSurveyRow is one unparsed export row.
type RawSurveyRow struct {
	Line     int
	DateTime string
	Name     string
	Age      string
}

// SurveyExportRepository reads the six survey exports from CSV files.
type SurveyExportRepository struct {
	paths map[models.SurveyVariant]string
}

// NewSurveyExportRepository maps each variant to its export path.
func NewSurveyExportRepository(paths map[models.SurveyVariant]string) *SurveyExportRepository {
	return &SurveyExportRepository{paths: paths}
}

// Load returns every data row of the export for variant. A missing file or a
// missing Date/Time or Name column fails the whole load.
func (r *SurveyExportRepository) Load(ctx context.Context, variant models.SurveyVariant) ([]RawSurveyRow, error) {
	path, ok := r.paths[variant]
	if !ok || path == "" {
		return nil, appErrors.Clonef(appErrors.ErrSurveyLoad, "no export configured for %s", variant.Label())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrSurveyLoad, err, fmt.Sprintf("open %s export", variant.Label()))
	}
	defer f.Close() //nolint:errcheck

	rows, err := readSurveyCSV(ctx, f)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrSurveyLoad, err, fmt.Sprintf("read %s export %s", variant.Label(), path))
	}
	return rows, nil
}

func readSurveyCSV(ctx context.Context, src io.Reader) ([]RawSurveyRow, error) {
	reader := newLenientCSVReader(src)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columnIndex(header)
	timeIdx, ok := cols[surveyTimeColumn]
	if !ok {
		return nil, fmt.Errorf("missing %q column", surveyTimeColumn)
	}
	nameIdx, ok := cols[surveyNameColumn]
	if !ok {
		return nil, fmt.Errorf("missing %q column", surveyNameColumn)
	}
	ageIdx, hasAge := cols[surveyAgeColumn]

	rows := make([]RawSurveyRow, 0, 64)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := RawSurveyRow{Line: line, DateTime: field(record, timeIdx), Name: field(record, nameIdx)}
		if hasAge {
			row.Age = field(record, ageIdx)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newLenientCSVReader(src io.Reader) *csv.Reader {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false
	return reader
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
