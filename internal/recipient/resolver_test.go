package recipient

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reg-mail-forwarder-go/internal/model"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStr(sheet, ref, value))
		}
	}

	path := filepath.Join(t.TempDir(), "recipients.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipients.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"OWNER", "REG NUMBER", "EMAIL ADDRESS"},
		{"Fleet A", "ABC123", "x@y.com"},
		{"Fleet B", "KDA001A", "b@example.com"},
	})

	r := NewResolver()
	addr, ok, err := r.Resolve(path, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x@y.com", addr)

	_, ok, err = r.Resolve(path, "ZZZ999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveFirstMatchWins(t *testing.T) {
	path := writeCSV(t, "REG NUMBER,EMAIL ADDRESS\nABC123,first@example.com\nABC123,second@example.com\n")

	addr, ok, err := NewResolver().Resolve(path, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first@example.com", addr)
}

func TestResolveIsCaseSensitive(t *testing.T) {
	path := writeCSV(t, "REG NUMBER,EMAIL ADDRESS\nabc123,lower@example.com\n")

	_, ok, err := NewResolver().Resolve(path, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveHeaderMatchingIsLenient(t *testing.T) {
	path := writeCSV(t, "\ufeff reg number ,Email Address\nABC123,x@y.com\n")

	addr, ok, err := NewResolver().Resolve(path, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x@y.com", addr)
}

func TestResolveShortRow(t *testing.T) {
	path := writeCSV(t, "REG NUMBER,EMAIL ADDRESS\nABC123\n")

	_, ok, err := NewResolver().Resolve(path, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveReadsLatestTable(t *testing.T) {
	path := writeCSV(t, "REG NUMBER,EMAIL ADDRESS\nABC123,old@example.com\n")
	r := NewResolver()

	addr, _, err := r.Resolve(path, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", addr)

	require.NoError(t, os.WriteFile(path, []byte("REG NUMBER,EMAIL ADDRESS\nABC123,new@example.com\n"), 0o644))

	addr, _, err = r.Resolve(path, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", addr)
}

func TestResolveMissingColumn(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"REG NUMBER", "OWNER"},
		{"ABC123", "Fleet A"},
	})

	_, _, err := NewResolver().Resolve(path, "ABC123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfig))
	assert.Contains(t, err.Error(), EmailColumn)
}

func TestResolveMissingFile(t *testing.T) {
	_, _, err := NewResolver().Resolve(filepath.Join(t.TempDir(), "absent.xlsx"), "ABC123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfig))
}

func TestCheck(t *testing.T) {
	r := NewResolver()

	good := writeCSV(t, "REG NUMBER,EMAIL ADDRESS\n")
	assert.NoError(t, r.Check(good))

	bad := writeCSV(t, "PLATE,EMAIL ADDRESS\n")
	err := r.Check(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfig))

	legacy := filepath.Join(t.TempDir(), "recipients.xls")
	require.NoError(t, os.WriteFile(legacy, []byte("x"), 0o644))
	assert.True(t, errors.Is(r.Check(legacy), model.ErrConfig))
}
