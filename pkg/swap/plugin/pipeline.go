package plugin

import (
	"fmt"
	"sync"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
)

// Registration describes an enabled plugin.
type Registration struct {
	Name     string `json:"name"`
	HookMask uint8  `json:"hookMask"`
}

type entry struct {
	plugin Plugin
	mask   uint8
}

// Pipeline is an insertion-ordered registry of enabled plugins.
// Membership is a set keyed by plugin name; dispatch iterates in
// registration order, which stays stable for a plugin's whole enabled
// lifetime.
type Pipeline struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[string]*entry
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		index: make(map[string]*entry),
	}
}

func hookMask(points []HookPoint) uint8 {
	var mask uint8
	for _, p := range points {
		if p < numHookPoints {
			mask |= 1 << p
		}
	}
	return mask
}

// Enable registers and initializes a plugin. Enabling an already-enabled
// plugin is a no-op: no duplicate init call, and the caller must not re-emit
// an enabled signal (the returned bool reports whether state changed).
func (pl *Pipeline) Enable(p Plugin, initData []byte) (bool, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	name := p.Name()
	if _, ok := pl.index[name]; ok {
		return false, nil
	}

	if err := p.Enable(initData); err != nil {
		return false, fmt.Errorf("plugin %s enable failed: %w", name, err)
	}

	e := &entry{plugin: p, mask: hookMask(p.Hooks())}
	pl.entries = append(pl.entries, e)
	pl.index[name] = e
	return true, nil
}

// Disable removes a plugin from the registry and runs its disable routine.
// Disabling an unknown plugin is a no-op, symmetric with Enable.
func (pl *Pipeline) Disable(p Plugin, data []byte) (bool, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	name := p.Name()
	e, ok := pl.index[name]
	if !ok {
		return false, nil
	}

	delete(pl.index, name)
	for i, cur := range pl.entries {
		if cur == e {
			pl.entries = append(pl.entries[:i], pl.entries[i+1:]...)
			break
		}
	}

	if err := p.Disable(data); err != nil {
		return true, fmt.Errorf("plugin %s disable failed: %w", name, err)
	}
	return true, nil
}

// Run dispatches a hook point over the enabled plugins that declared
// interest in it, threading the order value from one plugin to the next.
// A plugin error aborts the chain and surfaces as a VetoError.
func (pl *Pipeline) Run(point HookPoint, o ledger.Order) (ledger.Order, error) {
	pl.mu.RLock()
	interested := make([]*entry, 0, len(pl.entries))
	for _, e := range pl.entries {
		if e.mask&(1<<point) != 0 {
			interested = append(interested, e)
		}
	}
	pl.mu.RUnlock()

	for _, e := range interested {
		next, err := e.plugin.OnHook(point, o)
		if err != nil {
			return o, VetoError{Plugin: e.plugin.Name(), Point: point, Reason: err}
		}
		o = next
	}
	return o, nil
}

// List returns the enabled plugins in registration order.
func (pl *Pipeline) List() []Registration {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	out := make([]Registration, 0, len(pl.entries))
	for _, e := range pl.entries {
		out = append(out, Registration{Name: e.plugin.Name(), HookMask: e.mask})
	}
	return out
}
