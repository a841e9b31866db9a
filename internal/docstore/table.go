package docstore

import (
	"cmp"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rakunlabs/nezumi/internal/xlsx"
)

// tableBinding is the narrow interface Database needs from a Table,
// independent of its key/value type parameters.
type tableBinding interface {
	Name() string
	Dirty() bool
	clearDirty()
	loadSheet(sheet *xlsx.Sheet) error
	dumpSheet() xlsx.SheetData
}

// Table is an ordered, typed, key→row map. Mutating operations set the
// table's dirty flag; rows are kept in ascending key order so iteration and
// worksheet dumps are deterministic.
type Table[K cmp.Ordered, V Row] struct {
	name       string
	codec      KeyCodec[K]
	newValue   func() V
	fieldNames []string

	mu    sync.Mutex
	order []K
	rows  map[K]V
	dirty bool
}

// NewTable declares a table named after its worksheet, with a key codec and
// a zero-value constructor used when loading rows back from disk. newValue
// is called once here, by reflection, to validate that V is a pointer to a
// struct embedding Record and that its declared fields have unique names —
// this is the one place docstore uses reflection; the hot path (Insert,
// Mutate, dumpSheet) never does.
func NewTable[K cmp.Ordered, V Row](name string, codec KeyCodec[K], newValue func() V) *Table[K, V] {
	sample := newValue()
	validateRow(name, sample)

	fields := sample.Fields()
	names := make([]string, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			panic(fmt.Sprintf("docstore: table %q declares a field with an empty name", name))
		}
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("docstore: table %q declares field %q twice", name, f.Name))
		}
		seen[f.Name] = struct{}{}
		names[i] = f.Name
	}

	return &Table[K, V]{
		name:       name,
		codec:      codec,
		newValue:   newValue,
		fieldNames: names,
		rows:       make(map[K]V),
	}
}

func validateRow(table string, sample any) {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("docstore: table %q's row type must be a pointer to a struct, got %T", table, sample))
	}
	if _, ok := t.Elem().FieldByName("Record"); !ok {
		panic(fmt.Sprintf("docstore: table %q's row type %s must embed docstore.Record", table, t))
	}
}

func (t *Table[K, V]) Name() string { return t.name }

// Insert adds or replaces the row at key, marking the table dirty.
func (t *Table[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rows[key]; !exists {
		t.insertKeyLocked(key)
	}
	t.rows[key] = value
	t.dirty = true
}

// Delete removes the row at key, reporting whether it existed.
func (t *Table[K, V]) Delete(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rows[key]; !exists {
		return false
	}
	delete(t.rows, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.dirty = true
	return true
}

// Get returns the row at key, if present.
func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.rows[key]
	return v, ok
}

// Len reports the number of rows.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Keys returns the table's keys in ascending order.
func (t *Table[K, V]) Keys() []K {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]K, len(t.order))
	copy(out, t.order)
	return out
}

// Mutate applies fn to the row at key, then bumps its UpdatedAt and marks
// the table dirty. It reports whether the key existed. fn must not be
// called with a nil row; use Insert for rows that don't exist yet.
func (t *Table[K, V]) Mutate(key K, fn func(V)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.rows[key]
	if !ok {
		return false
	}
	fn(v)
	v.Timestamps().UpdatedAt = time.Now()
	t.dirty = true
	return true
}

// Dirty reports whether the table has unsaved mutations.
func (t *Table[K, V]) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

func (t *Table[K, V]) clearDirty() {
	t.mu.Lock()
	t.dirty = false
	t.mu.Unlock()
}

func (t *Table[K, V]) insertKeyLocked(key K) {
	i := 0
	for i < len(t.order) && t.order[i] < key {
		i++
	}
	t.order = append(t.order, key)
	copy(t.order[i+1:], t.order[i:])
	t.order[i] = key
}

// loadSheet replaces the table's contents from a worksheet's cell grid.
// Column layout: col 0 = key; each declared field is read from the column
// whose header-row cell holds its name. created_at/updated_at are not read
// from the sheet. A nil sheet (module has no workbook yet) leaves the table
// empty.
func (t *Table[K, V]) loadSheet(sheet *xlsx.Sheet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = make(map[K]V)
	t.order = nil
	t.dirty = false

	if sheet == nil {
		return nil
	}

	rows := sheet.Rows()
	if len(rows) == 0 {
		return nil
	}

	headerRow := rows[0]
	fieldCol := make(map[string]int, len(t.fieldNames))
	for _, c := range sheet.RowCells(headerRow) {
		if name, ok := c.Value.(string); ok && c.Col >= 1 {
			fieldCol[name] = c.Col
		}
	}

	for _, r := range rows[1:] {
		cells := sheet.RowCells(r)

		byCol := make(map[int]any, len(cells))
		for _, c := range cells {
			byCol[c.Col] = c.Value
		}

		keyCell, hasKey := byCol[0]
		if !hasKey || keyCell == nil {
			break // empty key in column 0 terminates the row range
		}

		key, err := t.codec.Decode(keyCell)
		if err != nil {
			return fmt.Errorf("docstore: table %s row %d: decode key: %w", t.name, r, err)
		}

		value := t.newValue()
		for _, f := range value.Fields() {
			col, ok := fieldCol[f.Name]
			if !ok {
				continue
			}
			cell, ok := byCol[col]
			if !ok {
				continue
			}
			if err := f.Set(cell); err != nil {
				return fmt.Errorf("docstore: table %s row %d field %s: %w", t.name, r, f.Name, err)
			}
		}

		t.order = append(t.order, key)
		t.rows[key] = value
	}

	return nil
}

// dumpSheet renders the table as an ordered cell stream suitable for
// internal/xlsx.Write. created_at/updated_at are in-memory bookkeeping only
// (used by Mutate and read by plugins such as commander's .debug_s) and are
// never persisted, matching the reference store's worksheet_data.
func (t *Table[K, V]) dumpSheet() xlsx.SheetData {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := make([]xlsx.ColCell, 0, 1+len(t.fieldNames))
	header = append(header, xlsx.ColCell{Col: 0, Value: ""})
	for i, name := range t.fieldNames {
		header = append(header, xlsx.ColCell{Col: 1 + i, Value: name})
	}

	data := make(xlsx.SheetData, 0, len(t.order)+1)
	data = append(data, xlsx.RowData{Row: 0, Cells: header})

	for i, key := range t.order {
		v := t.rows[key]

		cells := make([]xlsx.ColCell, 0, 1+len(t.fieldNames))
		cells = append(cells, xlsx.ColCell{Col: 0, Value: t.codec.Encode(key)})
		for j, f := range v.Fields() {
			cells = append(cells, xlsx.ColCell{Col: 1 + j, Value: f.Get()})
		}

		data = append(data, xlsx.RowData{Row: i + 1, Cells: cells})
	}

	return data
}
