// Package tally is a minimal docstore-backed per-sender counter: ".tally"
// increments the caller's count and reports the new total.
package tally

import (
	"context"
	"fmt"

	"github.com/rakunlabs/nezumi/internal/docstore"
	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

type count struct {
	docstore.Record
	Sender int64
	Count  int64
}

func (c *count) Timestamps() *docstore.Record { return &c.Record }

func (c *count) Fields() []docstore.Field {
	return []docstore.Field{
		{
			Name: "sender",
			Get:  func() any { return c.Sender },
			Set: func(v any) error {
				n, err := coerceInt(v)
				if err != nil {
					return fmt.Errorf("sender: %w", err)
				}
				c.Sender = n
				return nil
			},
		},
		{
			Name: "count",
			Get:  func() any { return c.Count },
			Set: func(v any) error {
				n, err := coerceInt(v)
				if err != nil {
					return fmt.Errorf("count: %w", err)
				}
				c.Count = n
				return nil
			},
		},
	}
}

func newCount() *count { return &count{Record: docstore.NewRecord()} }

func coerceInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to int64", v)
	}
}

// Plugin implements ".tally".
type Plugin struct {
	*plugin.Base

	db    *docstore.Database
	table *docstore.Table[int64, *count]
}

// New constructs the tally plugin, bound to "<dir>/tally.xlsx".
func New(dir string) (*Plugin, error) {
	table := docstore.NewTable("counts", docstore.Int64Key, newCount)
	db, err := docstore.NewDatabase(dir+"/tally.xlsx", table)
	if err != nil {
		return nil, err
	}

	p := &Plugin{Base: plugin.NewBase("tally"), db: db, table: table}
	p.RegisterCommand([]string{"tally"}, nil, p.handleTally)

	plugin.Documented("tally", ".tally - 给自己的计数加一并报告总数")

	return p, nil
}

// Database returns the plugin's own workbook-backed store, for the pipeline
// host's save-if-dirty sweep.
func (p *Plugin) Database() *docstore.Database { return p.db }

func (p *Plugin) handleTally(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	sender := evt.SenderID()

	if ok := p.table.Mutate(sender, func(row *count) { row.Count++ }); !ok {
		row := newCount()
		row.Sender = sender
		row.Count = 1
		p.table.Insert(sender, row)
	}

	row, _ := p.table.Get(sender)
	return fmt.Sprintf("计数：%d", row.Count), nil, nil
}
