// Package docstore is an in-memory, ordered, typed row store whose on-disk
// format is a workbook: keyed rows with full-table rewrite on persist, no
// query language, one worksheet per record type.
package docstore

import "time"

// Record carries the two audit timestamps every row has. Field mutation
// through Table.Mutate bumps UpdatedAt and marks the owning table dirty;
// CreatedAt is fixed at construction.
type Record struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord returns a Record stamped with the current time, for embedding in
// a freshly constructed row before it is inserted.
func NewRecord() Record {
	now := time.Now()
	return Record{CreatedAt: now, UpdatedAt: now}
}

// Field describes one declared, named column of a record type, bound to a
// single live instance's storage. Get reads the current value in the shape
// internal/xlsx accepts; Set coerces a decoded cell value (nil, bool, int64,
// float64, string, []byte or time.Time) into the field's Go type, returning
// an error if the stored primitive cannot be coerced.
type Field struct {
	Name string
	Get  func() any
	Set  func(cell any) error
}

// Row is the contract a record type must satisfy to live in a Table: access
// to its own audit timestamps, and an ordered field declaration bound to its
// own storage.
type Row interface {
	Timestamps() *Record
	Fields() []Field
}
