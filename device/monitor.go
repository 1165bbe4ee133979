package device

import (
	"context"
	"sort"
)

// Monitor tracks liveness across sweeps so the daemon can tell when a
// terminal drops off or comes back, not just whether it is connected right
// now. Drive it from a single goroutine; sweeps are stateful.
type Monitor struct {
	reg       *Registry
	connected map[string]bool
}

// NewMonitor creates a [Monitor] over reg. The first sweep establishes the
// baseline and reports nothing.
func NewMonitor(reg *Registry) *Monitor {
	return &Monitor{reg: reg, connected: make(map[string]bool)}
}

// Sweep reads current liveness and returns the serial numbers that dropped
// off and those that returned since the previous sweep, both sorted.
func (m *Monitor) Sweep(ctx context.Context) (dropped, returned []string, err error) {
	infos, err := m.reg.All(ctx)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.SerialNumber] = info.Connected
		prev, known := m.connected[info.SerialNumber]
		if !known {
			continue
		}
		switch {
		case prev && !info.Connected:
			dropped = append(dropped, info.SerialNumber)
		case !prev && info.Connected:
			returned = append(returned, info.SerialNumber)
		}
	}
	m.connected = seen

	sort.Strings(dropped)
	sort.Strings(returned)
	return dropped, returned, nil
}
