package docstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/nezumi/internal/xlsx"
)

type internalNote struct {
	Record
	Text string
}

func (n *internalNote) Timestamps() *Record { return &n.Record }
func (n *internalNote) Fields() []Field {
	return []Field{{
		Name: "text",
		Get:  func() any { return n.Text },
		Set:  func(v any) error { n.Text, _ = v.(string); return nil },
	}}
}

func TestDumpSheetHeaderHasNoTimestampColumns(t *testing.T) {
	tbl := NewTable("notes", Int64Key, func() *internalNote { return &internalNote{Record: NewRecord()} })
	tbl.Insert(1, &internalNote{Record: NewRecord(), Text: "hi"})

	sheet := tbl.dumpSheet()
	require.Len(t, sheet, 2)

	header := sheet[0]
	require.Equal(t, 0, header.Row)
	require.Equal(t, []xlsx.ColCell{
		{Col: 0, Value: ""},
		{Col: 1, Value: "text"},
	}, header.Cells)

	row := sheet[1]
	require.Equal(t, []xlsx.ColCell{
		{Col: 0, Value: int64(1)},
		{Col: 1, Value: "hi"},
	}, row.Cells)
}
