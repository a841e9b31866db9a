package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/nezumi/internal/docstore"
	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/gateway"
	"github.com/rakunlabs/nezumi/internal/namecache"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

type stubPlugin struct {
	name   string
	result any
	err    error
	called *bool
}

func (s *stubPlugin) Name() string { return s.name }

func (s *stubPlugin) Dispatch(ctx context.Context, deps plugin.Deps, evt *plugin.Event) (any, error) {
	if s.called != nil {
		*s.called = true
	}
	return s.result, s.err
}

func newTestDeps(t *testing.T, handler http.HandlerFunc) plugin.Deps {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := gateway.New(server.URL, time.Second)
	require.NoError(t, err)

	return plugin.Deps{
		Gateway: gw,
		Names:   namecache.New(gw),
		Flows:   flow.New(24 * time.Hour),
	}
}

func TestDispatchFirstHandlerWins(t *testing.T) {
	var secondCalled bool
	first := &stubPlugin{name: "first", result: "handled it"}
	second := &stubPlugin{name: "second", result: "should not run", called: &secondCalled}

	var sentPath string
	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		sentPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","data":{}}`))
	})

	h := &Host{deps: deps, plugins: []plugin.Plugin{first, second}, adminContext: -1}

	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":1,"raw_message":"hi"}`))
	require.NoError(t, err)

	h.dispatch(context.Background(), evt)

	require.False(t, secondCalled)
	require.Equal(t, "/send_private_msg", sentPath)
}

func TestDispatchHandledTrueSendsNoReply(t *testing.T) {
	called := false
	p := &stubPlugin{name: "silent", result: true}

	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"status":"ok","data":{}}`))
	})

	h := &Host{deps: deps, plugins: []plugin.Plugin{p}, adminContext: -1}
	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":1,"raw_message":"hi"}`))
	require.NoError(t, err)

	h.dispatch(context.Background(), evt)
	require.False(t, called)
}

func TestDispatchPluginErrorReportsToEventContext(t *testing.T) {
	boom := &stubError{msg: "plugin blew up"}
	p := &stubPlugin{name: "broken", err: boom}

	var body map[string]any
	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send_private_msg", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"status":"ok","data":{}}`))
	})

	h := &Host{deps: deps, plugins: []plugin.Plugin{p}, adminContext: -999}
	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":7,"raw_message":"hi"}`))
	require.NoError(t, err)

	h.dispatch(context.Background(), evt)

	require.EqualValues(t, 7, body["user_id"])
	require.Equal(t, "plugin blew up", body["message"])
}

func TestDispatchPluginErrorFallsBackToAdminContext(t *testing.T) {
	boom := &stubError{msg: "plugin blew up"}
	p := &stubPlugin{name: "broken", err: boom}

	var body map[string]any
	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send_private_msg", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"status":"ok","data":{}}`))
	})

	h := &Host{deps: deps, plugins: []plugin.Plugin{p}, adminContext: 999}
	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":0,"raw_message":"hi"}`))
	require.NoError(t, err)

	h.dispatch(context.Background(), evt)

	require.EqualValues(t, 999, body["user_id"])
}

func TestDispatchEmptyStringReplyFallsThroughToNextPlugin(t *testing.T) {
	first := &stubPlugin{name: "first", result: ""}
	second := &stubPlugin{name: "second", result: "handled it"}

	var sentPath string
	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		sentPath = r.URL.Path
		w.Write([]byte(`{"status":"ok","data":{}}`))
	})

	h := &Host{deps: deps, plugins: []plugin.Plugin{first, second}, adminContext: -1}
	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":1,"raw_message":"hi"}`))
	require.NoError(t, err)

	h.dispatch(context.Background(), evt)

	require.Equal(t, "/send_private_msg", sentPath)
}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }

type note struct {
	docstore.Record
	Text string
}

func (n *note) Timestamps() *docstore.Record { return &n.Record }
func (n *note) Fields() []docstore.Field {
	return []docstore.Field{{
		Name: "text",
		Get:  func() any { return n.Text },
		Set:  func(v any) error { n.Text, _ = v.(string); return nil },
	}}
}

func TestSaveDirtyReportsFailureToEventContext(t *testing.T) {
	dir := t.TempDir()

	// blocker/sub/notes.xlsx does not exist yet, so NewDatabase loads it as
	// empty. Once blocker is created as a plain file, os.MkdirAll inside
	// Database.Save is guaranteed to fail.
	blocker := filepath.Join(dir, "blocker")

	table := docstore.NewTable("notes", docstore.Int64Key, func() *note { return &note{Record: docstore.NewRecord()} })
	db, err := docstore.NewDatabase(filepath.Join(blocker, "sub", "notes.xlsx"), table)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))
	table.Insert(1, &note{Record: docstore.NewRecord(), Text: "hi"})
	require.True(t, db.Dirty())

	var body map[string]any
	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send_private_msg", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"status":"ok","data":{}}`))
	})

	h := &Host{deps: deps, databases: []*docstore.Database{db}, adminContext: -1}
	evt, err := plugin.Decode([]byte(`{"post_type":"message","user_id":7,"raw_message":"hi"}`))
	require.NoError(t, err)

	h.saveDirty(context.Background(), evt)

	require.EqualValues(t, 7, body["user_id"])
	require.Contains(t, body["message"], "save database")
}
