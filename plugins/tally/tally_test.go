package tally

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

func TestHandleTallyIncrements(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":7,"raw_message":".tally"}`))
	require.NoError(t, err)

	reply, err := p.Dispatch(context.Background(), plugin.Deps{Flows: flow.New(24 * time.Hour)}, evt)
	require.NoError(t, err)
	require.Equal(t, "计数：1", reply)

	reply, err = p.Dispatch(context.Background(), plugin.Deps{Flows: flow.New(24 * time.Hour)}, evt)
	require.NoError(t, err)
	require.Equal(t, "计数：2", reply)
}

func TestHandleTallySeparatePerSender(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	evtA, err := plugin.Decode([]byte(`{"post_type":"message","user_id":1,"raw_message":".tally"}`))
	require.NoError(t, err)
	evtB, err := plugin.Decode([]byte(`{"post_type":"message","user_id":2,"raw_message":".tally"}`))
	require.NoError(t, err)

	reply, err := p.Dispatch(context.Background(), plugin.Deps{Flows: flow.New(24 * time.Hour)}, evtA)
	require.NoError(t, err)
	require.Equal(t, "计数：1", reply)

	reply, err = p.Dispatch(context.Background(), plugin.Deps{Flows: flow.New(24 * time.Hour)}, evtB)
	require.NoError(t, err)
	require.Equal(t, "计数：1", reply)
}
