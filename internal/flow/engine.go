// Package flow is the conversation-flow engine: an ordered map from
// (context, sender) to a suspended computation, maintained least-recent
// first so that retention-window eviction is a prefix scan. See §4.G/§9.
package flow

import (
	"container/list"
	"sync"
	"time"
)

// Key identifies one conversation participant a flow can be suspended for.
type Key struct {
	Context int64
	Sender  int64
}

// Dispatch is invoked when no flow is active for a Key. It returns either
// an immediate reply (comp == nil) or a freshly started computation whose
// first prompt/result the engine will advance to.
type Dispatch func() (reply any, comp *Computation)

type entry struct {
	key          Key
	lastActivity time.Time
	comp         *Computation
}

// Engine holds the flow map. All operations are serialised by a single
// mutex: contention is negligible relative to the outbound work a
// plugin does per event.
type Engine struct {
	retention time.Duration

	mu    sync.Mutex
	order *list.List // front = least-recently active
	index map[Key]*list.Element
}

// New builds an Engine evicting entries whose last activity is older than
// retention.
func New(retention time.Duration) *Engine {
	return &Engine{
		retention: retention,
		order:     list.New(),
		index:     make(map[Key]*list.Element),
	}
}

// Handle runs one inbound message from key through the engine, per §4.G's
// three-step contract. now is the event's timestamp (passed in rather than
// taken internally, so eviction is deterministic to test). dispatch is
// only called when no flow is currently active for key.
func (e *Engine) Handle(key Key, text string, now time.Time, dispatch Dispatch) any {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evictLocked(now)

	el, active := e.index[key]
	if !active {
		reply, comp := dispatch()
		if comp == nil {
			return reply
		}

		ent := &entry{key: key, lastActivity: now, comp: comp}
		el = e.order.PushBack(ent)
		e.index[key] = el

		prompt, done, result := comp.Advance()
		return e.settleLocked(el, now, prompt, done, result)
	}

	ent := el.Value.(*entry)
	prompt, done, result := ent.comp.Resume(text)
	return e.settleLocked(el, now, prompt, done, result)
}

func (e *Engine) settleLocked(el *list.Element, now time.Time, prompt string, done bool, result any) any {
	ent := el.Value.(*entry)

	if done {
		e.order.Remove(el)
		delete(e.index, ent.key)
		return result
	}

	ent.lastActivity = now
	e.order.MoveToBack(el)
	return prompt
}

func (e *Engine) evictLocked(now time.Time) {
	for el := e.order.Front(); el != nil; {
		ent := el.Value.(*entry)
		if now.Sub(ent.lastActivity) <= e.retention {
			break
		}
		next := el.Next()
		e.order.Remove(el)
		delete(e.index, ent.key)
		el = next
	}
}

// Len reports the number of active flows, for tests and status reporting.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Len()
}

// Keys returns active keys in least-recent-first order, for tests and
// status reporting.
func (e *Engine) Keys() []Key {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]Key, 0, e.order.Len())
	for el := e.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys
}
