package docstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rakunlabs/nezumi/internal/xlsx"
)

// Database binds one workbook file to a fixed tuple of tables, one
// worksheet per table. Save frequency is the pipeline host's decision, not
// the database's: Database only exposes Reload, Save and Dirty.
type Database struct {
	path   string
	tables []tableBinding
}

// Path returns the workbook file this database is bound to, so an
// administrative plugin can send or replace the backing file directly
// (see plugins/commander's .select_from and file-upload handling).
func (d *Database) Path() string { return d.path }

// NewDatabase binds path to tables and loads it immediately (a missing file
// is not an error — it loads as empty tables).
func NewDatabase(path string, tables ...tableBinding) (*Database, error) {
	d := &Database{path: path, tables: tables}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload replaces every table's contents from the backing file and clears
// dirty flags. A missing file is treated as an all-empty load.
func (d *Database) Reload() error {
	sheets, err := xlsx.Read(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			sheets = map[string]*xlsx.Sheet{}
		} else {
			return fmt.Errorf("docstore: reload %s: %w", d.path, err)
		}
	}

	for _, t := range d.tables {
		if err := t.loadSheet(sheets[t.Name()]); err != nil {
			return fmt.Errorf("docstore: reload %s: %w", d.path, err)
		}
	}
	return nil
}

// Save writes every table to the backing file and clears dirty flags.
func (d *Database) Save() error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("docstore: save %s: %w", d.path, err)
	}

	sheets := make(map[string]xlsx.SheetData, len(d.tables))
	order := make([]string, len(d.tables))
	for i, t := range d.tables {
		sheets[t.Name()] = t.dumpSheet()
		order[i] = t.Name()
	}

	if err := xlsx.Write(d.path, sheets, order, nil); err != nil {
		return fmt.Errorf("docstore: save %s: %w", d.path, err)
	}

	for _, t := range d.tables {
		t.clearDirty()
	}
	return nil
}

// Dirty is the logical OR of every table's dirty flag.
func (d *Database) Dirty() bool {
	for _, t := range d.tables {
		if t.Dirty() {
			return true
		}
	}
	return false
}
