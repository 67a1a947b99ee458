package device

import (
	"github.com/mahtabnejad90/calabash/pkg/adb"
	"github.com/mahtabnejad90/calabash/pkg/core"
	"github.com/mahtabnejad90/calabash/pkg/testserver"
)

// NewTestDevice creates a Device over an injected bridge and client.
// This should only be used in tests.
func NewTestDevice(bridge *adb.Bridge, client *testserver.Client, localPort int) *Device {
	return newDevice(bridge, client, localPort)
}

// SetRetryPolicies overrides the lifecycle probe budgets.
// This should only be used in tests.
func (l *Lifecycle) SetRetryPolicies(responding, ready, stop core.RetryPolicy) {
	l.responding = responding
	l.ready = ready
	l.stop = stop
}

// Lifecycle exposes the device's lifecycle for test configuration.
// This should only be used in tests.
func (d *Device) Lifecycle() *Lifecycle {
	return d.lifecycle
}
