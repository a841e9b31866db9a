package flow_test

import (
	"testing"
	"time"

	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/stretchr/testify/require"
)

func TestHandleImmediateReplyNeverStartsFlow(t *testing.T) {
	e := flow.New(24 * time.Hour)
	key := flow.Key{Context: 7, Sender: 7}
	now := time.Unix(0, 0)

	reply := e.Handle(key, ".echo hi", now, func() (any, *flow.Computation) {
		return "你好，世界！", nil
	})

	require.Equal(t, "你好，世界！", reply)
	require.Equal(t, 0, e.Len())
}

func TestHandleNumberGuessFlow(t *testing.T) {
	e := flow.New(24 * time.Hour)
	key := flow.Key{Context: 1, Sender: 1}
	now := time.Unix(0, 0)

	started := false
	dispatch := func() (any, *flow.Computation) {
		comp := flow.Start(func(yield flow.Yield) any {
			guess := yield("我从 1～100 中随机选了一个整数…")
			for guess != "42" {
				guess = yield("太小了。")
			}
			return "猜对了！"
		})
		started = true
		return nil, comp
	}

	reply := e.Handle(key, ".猜数字", now, dispatch)
	require.True(t, started)
	require.Equal(t, "我从 1～100 中随机选了一个整数…", reply)
	require.Equal(t, 1, e.Len())

	reply = e.Handle(key, "10", now.Add(time.Second), dispatch)
	require.Equal(t, "太小了。", reply)
	require.Equal(t, 1, e.Len())

	reply = e.Handle(key, "42", now.Add(2*time.Second), dispatch)
	require.Equal(t, "猜对了！", reply)
	require.Equal(t, 0, e.Len())

	// flow gone: next message falls back to normal dispatch.
	reply = e.Handle(key, "anything", now.Add(3*time.Second), func() (any, *flow.Computation) {
		return "no flow active", nil
	})
	require.Equal(t, "no flow active", reply)
}

func TestEvictionAfterRetentionWindow(t *testing.T) {
	e := flow.New(24 * time.Hour)
	key := flow.Key{Context: 1, Sender: 1}
	start := time.Unix(0, 0)

	dispatch := func() (any, *flow.Computation) {
		comp := flow.Start(func(yield flow.Yield) any {
			yield("prompt")
			panic("never resumed in this test")
		})
		return nil, comp
	}

	reply := e.Handle(key, ".flow", start, dispatch)
	require.Equal(t, "prompt", reply)
	require.Equal(t, 1, e.Len())

	// still within the window: the entry survives.
	e.Handle(flow.Key{Context: 2, Sender: 2}, "x", start.Add(time.Hour), func() (any, *flow.Computation) {
		return "ok", nil
	})
	require.Equal(t, 1, e.Len())

	// past the one-day retention window: eviction runs on the next call for
	// any key and the stale flow disappears.
	e.Handle(flow.Key{Context: 2, Sender: 2}, "x", start.Add(86401*time.Second), func() (any, *flow.Computation) {
		return "ok", nil
	})
	require.Equal(t, 0, e.Len())
}

func TestKeysOrderedLeastRecentFirst(t *testing.T) {
	e := flow.New(24 * time.Hour)
	start := time.Unix(0, 0)

	mkFlow := func() (any, *flow.Computation) {
		return nil, flow.Start(func(yield flow.Yield) any {
			for {
				yield("prompt")
			}
		})
	}

	e.Handle(flow.Key{Context: 1, Sender: 1}, "x", start, mkFlow)
	e.Handle(flow.Key{Context: 2, Sender: 2}, "x", start.Add(time.Second), mkFlow)
	e.Handle(flow.Key{Context: 3, Sender: 3}, "x", start.Add(2*time.Second), mkFlow)

	require.Equal(t, []flow.Key{
		{Context: 1, Sender: 1},
		{Context: 2, Sender: 2},
		{Context: 3, Sender: 3},
	}, e.Keys())

	// touching key 1 moves it to the back.
	e.Handle(flow.Key{Context: 1, Sender: 1}, "y", start.Add(3*time.Second), mkFlow)
	require.Equal(t, []flow.Key{
		{Context: 2, Sender: 2},
		{Context: 3, Sender: 3},
		{Context: 1, Sender: 1},
	}, e.Keys())
}
