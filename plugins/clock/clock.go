// Package clock is the delayed-reminder plugin: ".clock <delay> <title>"
// (or "<title> <delay>") schedules title to be sent back to the requesting
// conversation once delay seconds have elapsed.
package clock

import (
	"container/heap"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rakunlabs/nezumi/internal/command"
	"github.com/rakunlabs/nezumi/internal/docstore"
	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

// reminder is one persisted, pending .clock entry.
type reminder struct {
	docstore.Record
	Context int64
	FireAt  time.Time
	Title   string
}

func (r *reminder) Timestamps() *docstore.Record { return &r.Record }

func (r *reminder) Fields() []docstore.Field {
	return []docstore.Field{
		{
			Name: "context",
			Get:  func() any { return r.Context },
			Set: func(v any) error {
				n, err := coerceInt(v)
				if err != nil {
					return fmt.Errorf("context: %w", err)
				}
				r.Context = n
				return nil
			},
		},
		{
			Name: "fire_at",
			Get:  func() any { return r.FireAt },
			Set: func(v any) error {
				t, ok := v.(time.Time)
				if !ok {
					return fmt.Errorf("fire_at: expected time, got %T", v)
				}
				r.FireAt = t
				return nil
			},
		},
		{
			Name: "title",
			Get:  func() any { return r.Title },
			Set: func(v any) error {
				s, _ := v.(string)
				r.Title = s
				return nil
			},
		},
	}
}

func newReminder() *reminder { return &reminder{Record: docstore.NewRecord()} }

func coerceInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("cannot coerce %T to int64", v)
	}
}

// pendingItem is one in-memory heap entry: just enough to order due
// reminders without re-reading the table on every tick.
type pendingItem struct {
	key    int64
	fireAt time.Time
}

type pendingHeap []pendingItem

func (h pendingHeap) Len() int           { return len(h) }
func (h pendingHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pendingItem)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Plugin implements ".clock" and the periodic due-reminder sweep.
type Plugin struct {
	*plugin.Base

	db    *docstore.Database
	table *docstore.Table[int64, *reminder]

	mu      sync.Mutex
	pending pendingHeap
	nextID  int64
}

var leadingOrTrailingDigits = regexp.MustCompile(`^\d+|\d+$`)

// New constructs the clock plugin, bound to "<dir>/clock.xlsx", rebuilding
// its in-memory due-order heap from whatever reminders survived the last
// run.
func New(dir string) (*Plugin, error) {
	table := docstore.NewTable("reminders", docstore.Int64Key, newReminder)
	db, err := docstore.NewDatabase(dir+"/clock.xlsx", table)
	if err != nil {
		return nil, err
	}

	p := &Plugin{Base: plugin.NewBase("clock"), db: db, table: table}

	for _, key := range table.Keys() {
		row, ok := table.Get(key)
		if !ok {
			continue
		}
		heap.Push(&p.pending, pendingItem{key: key, fireAt: row.FireAt})
		if key >= p.nextID {
			p.nextID = key + 1
		}
	}

	p.RegisterCommand([]string{"clock"},
		[]command.Param{{Name: "rest", Kind: command.KindString}},
		p.handleClock)
	p.OnInterval = p.onInterval

	plugin.Documented("clock", ".clock <秒数> <提醒内容> - 安排一次延迟提醒")

	return p, nil
}

// Database returns the plugin's own workbook-backed store, for the pipeline
// host's save-if-dirty sweep.
func (p *Plugin) Database() *docstore.Database { return p.db }

func (p *Plugin) handleClock(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	raw, _ := args["rest"].(string)
	raw = strings.TrimSpace(raw)

	loc := leadingOrTrailingDigits.FindStringIndex(raw)
	if loc == nil {
		return "无法识别到有效时间", nil, nil
	}

	seconds, err := strconv.ParseInt(raw[loc[0]:loc[1]], 10, 64)
	if err != nil {
		return "无法识别到有效时间", nil, nil
	}

	title := strings.TrimSpace(raw[:loc[0]] + raw[loc[1]:])
	if title == "" {
		return "标题不能为空", nil, nil
	}

	fireAt := time.Now().Add(time.Duration(seconds) * time.Second)

	p.mu.Lock()
	key := p.nextID
	p.nextID++
	heap.Push(&p.pending, pendingItem{key: key, fireAt: fireAt})
	p.mu.Unlock()

	row := newReminder()
	row.Context = evt.Context()
	row.FireAt = fireAt
	row.Title = title
	p.table.Insert(key, row)

	return fmt.Sprintf("%s %s", fireAt.Format(time.RFC3339), title), nil, nil
}

// onInterval sends every reminder whose fire time has passed, one per tick
// iteration, removing it from both the heap and the table.
func (p *Plugin) onInterval(ctx context.Context, deps plugin.Deps) error {
	now := time.Now()
	for {
		p.mu.Lock()
		if p.pending.Len() == 0 || p.pending[0].fireAt.After(now) {
			p.mu.Unlock()
			return nil
		}
		item := heap.Pop(&p.pending).(pendingItem)
		p.mu.Unlock()

		row, ok := p.table.Get(item.key)
		if !ok {
			continue
		}
		p.table.Delete(item.key)

		if deps.Gateway == nil {
			continue
		}
		if err := deps.Gateway.Send(ctx, row.Context, row.Title); err != nil {
			return err
		}
	}
}
