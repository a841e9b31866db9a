package plugin

import "sync"

var (
	registryMu sync.Mutex
	registry   []Plugin

	helpMu    sync.Mutex
	helpIndex []helpEntry
)

type helpEntry struct {
	under string
	text  string
}

// Register adds p to the ordered plugin list. The process entry point calls
// it once per constructed plugin, after configuration is loaded —
// registration order becomes dispatch order.
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, p)
}

// All returns the registered plugins in registration order. The pipeline
// host iterates this slice once at startup to build its dispatch list.
func All() []Plugin {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]Plugin, len(registry))
	copy(out, registry)
	return out
}

// Documented appends one line to the running .help index, keyed under a
// plugin or command name. Plugins call this from their constructors instead
// of relying on introspectable doc comments, which Go doesn't have at runtime.
func Documented(under, text string) {
	helpMu.Lock()
	defer helpMu.Unlock()
	helpIndex = append(helpIndex, helpEntry{under: under, text: text})
}

// HelpText renders the accumulated .help index as the reply to a .help
// command.
func HelpText() string {
	helpMu.Lock()
	defer helpMu.Unlock()

	var out string
	for i, e := range helpIndex {
		if i > 0 {
			out += "\n"
		}
		out += e.under + " - " + e.text
	}
	return out
}
