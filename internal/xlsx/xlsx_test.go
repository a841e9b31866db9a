package xlsx_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rakunlabs/nezumi/internal/xlsx"
	"github.com/stretchr/testify/require"
)

func TestColumnLetterRoundTrip(t *testing.T) {
	cases := map[string]int{"A": 0, "Z": 25, "AA": 26, "AAA": 702}
	for letter, n := range cases {
		got, err := xlsx.ColumnLetter(n)
		require.NoError(t, err)
		require.Equal(t, letter, got)

		back, err := xlsx.ColumnNumber(letter)
		require.NoError(t, err)
		require.Equal(t, n, back)
	}

	for n := 0; n < 5000; n += 37 {
		letter, err := xlsx.ColumnLetter(n)
		require.NoError(t, err)
		back, err := xlsx.ColumnNumber(letter)
		require.NoError(t, err)
		require.Equal(t, n, back)
	}
}

func TestParseCellRef(t *testing.T) {
	for _, ref := range []string{"A1", "R1C1"} {
		row, col, err := xlsx.ParseCellRef(ref)
		require.NoError(t, err)
		require.Equal(t, 0, row)
		require.Equal(t, 0, col)
	}

	_, _, err := xlsx.ParseCellRef("not a ref")
	require.ErrorIs(t, err, xlsx.ErrStructural)
}

func TestWriteReadRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	sheets := map[string]xlsx.SheetData{
		"S": {
			{Row: 0, Cells: []xlsx.ColCell{
				{Col: 0, Value: ""},
				{Col: 1, Value: "created_at"},
				{Col: 2, Value: "updated_at"},
				{Col: 3, Value: "note"},
			}},
			{Row: 1, Cells: []xlsx.ColCell{
				{Col: 0, Value: int64(1)},
				{Col: 1, Value: now},
				{Col: 2, Value: now},
				{Col: 3, Value: "hello"},
			}},
			{Row: 2, Cells: []xlsx.ColCell{
				{Col: 0, Value: int64(2)},
				{Col: 1, Value: now},
				{Col: 2, Value: now},
				{Col: 3, Value: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
			}},
			{Row: 3, Cells: []xlsx.ColCell{
				{Col: 0, Value: int64(3)},
				{Col: 1, Value: now},
				{Col: 2, Value: now},
				{Col: 3, Value: 3.5},
			}},
			{Row: 4, Cells: []xlsx.ColCell{
				{Col: 0, Value: int64(4)},
				{Col: 1, Value: now},
				{Col: 2, Value: now},
				{Col: 3, Value: nil},
			}},
			{Row: 5, Cells: []xlsx.ColCell{
				{Col: 0, Value: int64(5)},
				{Col: 1, Value: now},
				{Col: 2, Value: now},
				{Col: 3, Value: true},
			}},
		},
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, xlsx.Write(path, sheets, []string{"S"}, nil))

	got, err := xlsx.Read(path)
	require.NoError(t, err)
	sheet, ok := got["S"]
	require.True(t, ok)

	v, ok := sheet.Get(1, 3)
	require.True(t, ok)
	require.Equal(t, "hello", v)

	v, ok = sheet.Get(2, 3)
	require.True(t, ok)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, v)

	v, ok = sheet.Get(3, 3)
	require.True(t, ok)
	require.Equal(t, 3.5, v)

	v, ok = sheet.Get(4, 3)
	require.True(t, ok)
	require.Nil(t, v)

	v, ok = sheet.Get(5, 3)
	require.True(t, ok)
	require.Equal(t, true, v)

	v, ok = sheet.Get(1, 0)
	require.True(t, ok)
	require.Equal(t, int64(1), v)

	v, ok = sheet.Get(1, 1)
	require.True(t, ok)
	tv, ok := v.(time.Time)
	require.True(t, ok)
	require.True(t, tv.Equal(now) || tv.Sub(now) < time.Second)
}

func TestIntegerFloatHeuristic(t *testing.T) {
	sheets := map[string]xlsx.SheetData{
		"S": {
			{Row: 0, Cells: []xlsx.ColCell{{Col: 0, Value: int64(7)}, {Col: 1, Value: 7.0}}},
		},
	}
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, xlsx.Write(path, sheets, []string{"S"}, nil))

	got, err := xlsx.Read(path)
	require.NoError(t, err)

	v0, _ := got["S"].Get(0, 0)
	require.IsType(t, int64(0), v0)

	v1, _ := got["S"].Get(0, 1)
	require.IsType(t, float64(0), v1)
}

func TestErrorSentinels(t *testing.T) {
	sheets := map[string]xlsx.SheetData{
		"S": {
			{Row: 0, Cells: []xlsx.ColCell{
				{Col: 0, Value: math.NaN()},
				{Col: 1, Value: math.Inf(1)},
			}},
		},
	}
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, xlsx.Write(path, sheets, []string{"S"}, nil))

	got, err := xlsx.Read(path)
	require.NoError(t, err)

	v0, _ := got["S"].Get(0, 0)
	require.True(t, math.IsNaN(v0.(float64)))

	// ±Inf round-trips through the "#DIV/0!" error sentinel, which the
	// reader contract collapses to NaN along with every other non-#N/A
	// error cell -- a known, spec-mandated asymmetry, see DESIGN.md.
	v1, _ := got["S"].Get(0, 1)
	require.True(t, math.IsNaN(v1.(float64)))
}

func TestWriteRejectsOutOfOrderCells(t *testing.T) {
	sheets := map[string]xlsx.SheetData{
		"S": {
			{Row: 0, Cells: []xlsx.ColCell{{Col: 1, Value: "b"}, {Col: 0, Value: "a"}}},
		},
	}
	err := xlsx.Write(filepath.Join(t.TempDir(), "out.xlsx"), sheets, []string{"S"}, nil)
	require.ErrorIs(t, err, xlsx.ErrStructural)
}

func TestReadMissingFile(t *testing.T) {
	_, err := xlsx.Read(filepath.Join(t.TempDir(), "does-not-exist.xlsx"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}
