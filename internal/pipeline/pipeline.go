// Package pipeline is the HTTP ingestion host: it binds the inbound
// listener, decodes posted events, walks the registered plugin list per
// §4.H/§4.I, and persists every dirty database after each event.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/rakunlabs/ada"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	"github.com/oklog/ulid/v2"

	"github.com/rakunlabs/nezumi/internal/config"
	"github.com/rakunlabs/nezumi/internal/docstore"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

// Host owns the ingestion server, the plugin dependencies, and the set of
// per-module databases that get saved after every event.
type Host struct {
	addr   string
	server *ada.Server

	deps      plugin.Deps
	plugins   []plugin.Plugin
	databases []*docstore.Database

	adminContext int64
}

// New wires a Host from configuration, the shared plugin dependencies, and
// the already-constructed per-module databases. Plugins are read once from
// the package-level registry, in registration order.
func New(cfg *config.Config, deps plugin.Deps, databases []*docstore.Database) *Host {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware("nezumi"),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
	)

	h := &Host{
		addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		server:       mux,
		deps:         deps,
		plugins:      plugin.All(),
		databases:    databases,
		adminContext: cfg.AdminContext,
	}

	mux.POST("/", h.handleEvent)
	mux.GET("/", h.handleStatus)

	return h
}

// Start binds the configured address, tolerating transient
// address-in-use errors the way the original core's listen loop does, then
// serves until ctx is cancelled.
func (h *Host) Start(ctx context.Context) error {
	if err := waitForBindable(ctx, h.addr); err != nil {
		return err
	}
	return h.server.StartWithContext(ctx, h.addr)
}

// waitForBindable probes addr by listening and immediately closing, retrying
// once a second on "address already in use" the way the reference listener
// loops on EADDRINUSE, so a slow-to-release previous instance doesn't fail
// startup outright. Any other bind error is returned immediately.
func waitForBindable(ctx context.Context, addr string) error {
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln.Close()
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("pipeline: bind %s: %w", addr, err)
		}

		slog.Warn("address in use, retrying bind", "addr", addr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (h *Host) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimited(r)
	if err != nil {
		slog.Error("read event body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	evt, err := plugin.Decode(body)
	if err != nil {
		slog.Error("decode event", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	id := ulid.Make()
	slog.Info("dispatching event", "id", id.String(), "post_type", evt.PostType, "context", evt.Context())

	if h.deps.Names != nil {
		h.deps.Names.Observe(evt.Context(), evt.SenderID(), evt.Sender.Nickname, evt.Sender.Card)
	}

	h.dispatch(ctx, evt)
	h.saveDirty(ctx, evt)

	w.WriteHeader(http.StatusOK)
}

// dispatch walks the plugin list in declared order; the first plugin whose
// handler returns a non-nil result other than an empty string stops the
// iteration, and so does the first handler error, which is reported instead.
// A reply other than the sentinel true is sent back as a text message; true
// means handled with no reply; a nil/absent result, or an empty string,
// counts as "not handled" and lets the next plugin try.
func (h *Host) dispatch(ctx context.Context, evt *plugin.Event) {
	for _, p := range h.plugins {
		reply, err := p.Dispatch(ctx, h.deps, evt)
		if err != nil {
			h.reportError(ctx, evt, p.Name(), err)
			return
		}
		if reply == nil {
			continue
		}

		if text, ok := reply.(string); ok {
			if text == "" {
				continue
			}
			h.reply(ctx, evt, text)
			return
		}
		if handled, ok := reply.(bool); ok && handled {
			return
		}
		h.reply(ctx, evt, fmt.Sprint(reply))
		return
	}
}

func (h *Host) reportError(ctx context.Context, evt *plugin.Event, pluginName string, err error) {
	slog.Error("uncaught plugin error", "plugin", pluginName, "error", err)

	convContext := evt.Context()
	if convContext == 0 {
		convContext = h.adminContext
	}
	if h.deps.Gateway == nil {
		return
	}
	if sendErr := h.deps.Gateway.Send(ctx, convContext, err.Error()); sendErr != nil {
		slog.Error("report plugin error", "error", sendErr)
	}
}

func (h *Host) reply(ctx context.Context, evt *plugin.Event, text string) {
	if h.deps.Gateway == nil {
		return
	}
	if err := h.deps.Gateway.Send(ctx, evt.Context(), text); err != nil {
		slog.Error("send reply", "error", err)
	}
}

// saveDirty persists and clears every database whose dirty flag is set,
// before the HTTP response is written so a caller observing success knows
// persistence already happened. A save failure is reported the same way an
// uncaught plugin error is: to the triggering event's own context, falling
// back to AdminContext.
func (h *Host) saveDirty(ctx context.Context, evt *plugin.Event) {
	for _, db := range h.databases {
		if !db.Dirty() {
			continue
		}
		if err := db.Save(); err != nil {
			h.reportError(ctx, evt, "docstore", fmt.Errorf("save database: %w", err))
		}
	}
}

func readLimited(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}
