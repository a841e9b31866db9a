// Package help implements ".help": it renders the index any other plugin
// built up by calling plugin.Documented at construction time.
package help

import (
	"context"

	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

// Plugin implements ".help".
type Plugin struct {
	*plugin.Base
}

// New constructs the help plugin.
func New() *Plugin {
	p := &Plugin{Base: plugin.NewBase("help")}
	p.RegisterCommand([]string{"help"}, nil, p.handleHelp)
	return p
}

func (p *Plugin) handleHelp(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	text := plugin.HelpText()
	if text == "" {
		text = "暂无可用命令。"
	}
	return text, nil, nil
}
