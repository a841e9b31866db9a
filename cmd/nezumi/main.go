package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/nezumi/internal/config"
	"github.com/rakunlabs/nezumi/internal/docstore"
	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/gateway"
	"github.com/rakunlabs/nezumi/internal/namecache"
	"github.com/rakunlabs/nezumi/internal/pipeline"
	"github.com/rakunlabs/nezumi/internal/plugin"

	"github.com/rakunlabs/nezumi/plugins/clock"
	"github.com/rakunlabs/nezumi/plugins/commander"
	"github.com/rakunlabs/nezumi/plugins/gate"
	"github.com/rakunlabs/nezumi/plugins/help"
	"github.com/rakunlabs/nezumi/plugins/tally"
)

var (
	name    = "nezumi"
	version = "v0.0.0"
)

// retention is how long a suspended conversation flow stays resumable
// before it's dropped for inactivity.
const retention = 24 * time.Hour

func main() {
	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gw, err := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}

	deps := plugin.Deps{
		Gateway: gw,
		Names:   namecache.New(gw),
		Flows:   flow.New(retention),
	}

	clockPlugin, err := clock.New(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("failed to open clock database: %w", err)
	}
	tallyPlugin, err := tally.New(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("failed to open tally database: %w", err)
	}

	databases := map[string]*docstore.Database{
		"clock": clockPlugin.Database(),
		"tally": tallyPlugin.Database(),
	}
	commanderPlugin := commander.New(databases)

	// Declaration order here is dispatch order: gate and help answer their
	// own narrow events first, the domain plugins try their own commands
	// next, and commander (catch-all admin surface) goes last.
	plugin.Register(gate.New())
	plugin.Register(help.New())
	plugin.Register(clockPlugin)
	plugin.Register(tallyPlugin)
	plugin.Register(commanderPlugin)

	host := pipeline.New(cfg, deps, []*docstore.Database{
		clockPlugin.Database(),
		tallyPlugin.Database(),
	})

	return host.Start(ctx)
}
