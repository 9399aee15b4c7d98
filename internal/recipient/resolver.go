package recipient

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"reg-mail-forwarder-go/internal/model"
)

// Column headers the recipient table must carry. Matching is case-insensitive
// and ignores surrounding whitespace.
const (
	RegNumberColumn = "REG NUMBER"
	EmailColumn     = "EMAIL ADDRESS"
)

// Resolver maps registration numbers to destination addresses using an
// uploaded spreadsheet. The table is re-read on every lookup so a run always
// sees the latest upload.
type Resolver struct{}

// NewResolver creates a new recipient resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the address of the first row whose registration number
// equals reg exactly. A missing or malformed table is a configuration error.
func (r *Resolver) Resolve(tablePath, reg string) (string, bool, error) {
	rows, err := readRows(tablePath)
	if err != nil {
		return "", false, err
	}

	if len(rows) == 0 {
		return "", false, fmt.Errorf("%w: recipient table %s is empty", model.ErrConfig, tablePath)
	}

	regIdx, emailIdx, err := headerColumns(rows[0])
	if err != nil {
		return "", false, fmt.Errorf("%w: recipient table %s: %v", model.ErrConfig, tablePath, err)
	}

	for _, row := range rows[1:] {
		if cell(row, regIdx) != reg {
			continue
		}
		addr := strings.TrimSpace(cell(row, emailIdx))
		if addr == "" {
			logrus.Warnf("Recipient table row for %s has no email address", reg)
			return "", false, nil
		}
		return addr, true, nil
	}

	return "", false, nil
}

// Check verifies the table can be read and carries the required columns.
func (r *Resolver) Check(tablePath string) error {
	rows, err := readRows(tablePath)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: recipient table %s is empty", model.ErrConfig, tablePath)
	}
	if _, _, err := headerColumns(rows[0]); err != nil {
		return fmt.Errorf("%w: recipient table %s: %v", model.ErrConfig, tablePath, err)
	}
	return nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported, save %s as .xlsx", model.ErrConfig, path)
	default:
		return readWorkbook(path)
	}
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open recipient table: %v", model.ErrConfig, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: recipient table %s has no sheets", model.ErrConfig, path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", model.ErrConfig, sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open recipient table: %v", model.ErrConfig, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse recipient table: %v", model.ErrConfig, err)
	}
	return rows, nil
}

func headerColumns(header []string) (int, int, error) {
	regIdx, emailIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case regIdx < 0 && strings.EqualFold(name, RegNumberColumn):
			regIdx = i
		case emailIdx < 0 && strings.EqualFold(name, EmailColumn):
			emailIdx = i
		}
	}

	var missing []string
	if regIdx < 0 {
		missing = append(missing, RegNumberColumn)
	}
	if emailIdx < 0 {
		missing = append(missing, EmailColumn)
	}
	if len(missing) > 0 {
		return 0, 0, fmt.Errorf("missing column(s) %s", strings.Join(missing, ", "))
	}
	return regIdx, emailIdx, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}
