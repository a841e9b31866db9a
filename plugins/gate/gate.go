// Package gate is the admission-control plugin: it auto-accepts every
// incoming friend or group-join request.
package gate

import (
	"context"

	"github.com/rakunlabs/nezumi/internal/plugin"
)

// Plugin implements on_admission, approving every request.
type Plugin struct {
	*plugin.Base
}

// New constructs the gate plugin.
func New() *Plugin {
	p := &Plugin{Base: plugin.NewBase("gate")}
	p.OnAdmission = p.approveAll
	return p
}

func (p *Plugin) approveAll(ctx context.Context, deps plugin.Deps, evt *plugin.Event) (*bool, error) {
	yes := true
	return &yes, nil
}
