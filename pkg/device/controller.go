package device

import (
	"context"
	"os"
	"time"

	"github.com/mahtabnejad90/calabash/pkg/adb"
	"github.com/mahtabnejad90/calabash/pkg/gesture"
	"github.com/mahtabnejad90/calabash/pkg/testserver"
)

// defaultGestureWait is the element-wait timeout attached to gesture
// descriptors at dispatch.
const defaultGestureWait = 5 * time.Second

// Device is the controller for one physical or virtual device: it owns the
// bridge, the test-server client and the managers built on them. One Device
// drives one device; instances share no state, so multi-device use means one
// Device per serial.
type Device struct {
	bridge    *adb.Bridge
	client    *testserver.Client
	installer *Installer
	lifecycle *Lifecycle
	localPort int
}

// New creates a Device for the given serial, binding the test-server client
// to localPort. An empty serial auto-detects the first connected device.
func New(serial string, localPort int) (*Device, error) {
	bridge, err := adb.New(serial)
	if err != nil {
		return nil, err
	}
	if localPort == 0 {
		localPort = testserver.DefaultLocalPort
	}
	return newDevice(bridge, testserver.NewClient(localPort), localPort), nil
}

func newDevice(bridge *adb.Bridge, client *testserver.Client, localPort int) *Device {
	return &Device{
		bridge:    bridge,
		client:    client,
		installer: NewInstaller(bridge),
		lifecycle: NewLifecycle(bridge, client, localPort),
		localPort: localPort,
	}
}

// Serial returns the device serial.
func (d *Device) Serial() string {
	return d.bridge.Serial()
}

// LocalPort returns the forwarded host port currently bound.
func (d *Device) LocalPort() int {
	return d.localPort
}

// ChangeServer rebinds the test-server client to a different host port. The
// device identity is unchanged.
func (d *Device) ChangeServer(localPort int) {
	d.client = testserver.NewClient(localPort)
	d.lifecycle = NewLifecycle(d.bridge, d.client, localPort)
	d.localPort = localPort
}

// Info returns basic device information via the bridge.
func (d *Device) Info(ctx context.Context) (adb.Info, error) {
	return d.bridge.Info(ctx)
}

// PerformAction executes a named test-server action.
func (d *Device) PerformAction(ctx context.Context, name string, args ...interface{}) (map[string]interface{}, error) {
	return d.client.PerformAction(ctx, name, args...)
}

// MapRoute runs a query method against the elements matching query.
func (d *Device) MapRoute(ctx context.Context, query, methodName string, methodArgs ...interface{}) ([]interface{}, error) {
	return d.client.MapRoute(ctx, query, methodName, methodArgs...)
}

// Tap taps the element matching query at (x, y).
func (d *Device) Tap(ctx context.Context, query string, x, y int, offset *gesture.Offset) error {
	return d.dispatch(ctx, query, gesture.Tap(x, y, offset))
}

// DoubleTap double-taps the element matching query at (x, y).
func (d *Device) DoubleTap(ctx context.Context, query string, x, y int, offset *gesture.Offset) error {
	return d.dispatch(ctx, query, gesture.DoubleTap(x, y, offset))
}

// LongPress presses at (x, y) held for duration.
func (d *Device) LongPress(ctx context.Context, query string, x, y int, offset *gesture.Offset, duration time.Duration) error {
	return d.dispatch(ctx, query, gesture.LongPress(x, y, offset, duration))
}

// Swipe swipes from one point to another over duration.
func (d *Device) Swipe(ctx context.Context, query string, from, to gesture.Point, duration time.Duration) error {
	return d.dispatch(ctx, query, gesture.Swipe(from, to, duration))
}

// Flick flicks from one point to another over duration.
func (d *Device) Flick(ctx context.Context, query string, from, to gesture.Point, duration time.Duration) error {
	return d.dispatch(ctx, query, gesture.Flick(from, to, duration))
}

func (d *Device) dispatch(ctx context.Context, query string, desc gesture.Descriptor) error {
	return d.client.PerformGesture(ctx, desc.WithParameters(query, defaultGestureWait))
}

// Install installs app and its test server, replacing existing installs.
func (d *Device) Install(ctx context.Context, app *Application) error {
	return d.installer.Install(ctx, app)
}

// EnsureInstalled installs app and its test server only where missing.
func (d *Device) EnsureInstalled(ctx context.Context, app *Application) error {
	return d.installer.EnsureInstalled(ctx, app)
}

// Uninstall removes app from the device.
func (d *Device) Uninstall(ctx context.Context, app *Application) error {
	return d.installer.Uninstall(ctx, app)
}

// ClearData clears app's stored data.
func (d *Device) ClearData(ctx context.Context, app *Application) error {
	return d.installer.ClearData(ctx, app)
}

// StartTestServer launches the instrumentation test server and waits until
// it is ready.
func (d *Device) StartTestServer(ctx context.Context, app *Application, opts StartOptions) error {
	return d.lifecycle.Start(ctx, app, opts)
}

// StopTestServer shuts the test server down and removes the port forward.
func (d *Device) StopTestServer(ctx context.Context) error {
	return d.lifecycle.Stop(ctx)
}

// Screenshot captures the device screen and writes it to path as PNG.
func (d *Device) Screenshot(ctx context.Context, path string) error {
	png, err := d.bridge.Screenshot(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0644)
}
