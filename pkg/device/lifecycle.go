package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mahtabnejad90/calabash/pkg/adb"
	"github.com/mahtabnejad90/calabash/pkg/core"
	"github.com/mahtabnejad90/calabash/pkg/testserver"
)

// Instrumentation defaults for the calabash test server.
const (
	DefaultInstrumentationClass = "sh.calaba.instrumentationbackend.InstrumentationBackend"
	DefaultTestRunner           = "sh.calaba.instrumentationbackend.CalabashInstrumentationTestRunner"
)

// Environment-argument keys injected into the instrumentation runner.
const (
	envTestServerPort = "test_server_port"
	envClass          = "class"
	envTargetPackage  = "target_package"
	envMainActivity   = "main_activity"
)

// Two separate budgets: "launched and forwarded" and "harness fully
// initialized" are different failure modes needing different diagnostics.
var (
	respondingPolicy = core.RetryPolicy{MaxAttempts: 30, Interval: time.Second, Timeout: 30 * time.Second}
	readyPolicy      = core.RetryPolicy{MaxAttempts: 10, Interval: time.Second, Timeout: 10 * time.Second}
	stopPolicy       = core.RetryPolicy{MaxAttempts: 5, Interval: time.Second}
)

// StartOptions configure one test-server start.
type StartOptions struct {
	MainActivity string
	TestRunner   string            // instrumentation runner class, defaulted
	Env          map[string]string // extra -e arguments; testServerPort cannot be overridden
}

// Lifecycle starts and stops the on-device test server: precondition checks,
// instrumentation launch, port forwarding and the responding/ready probe
// loops.
type Lifecycle struct {
	bridge    *adb.Bridge
	client    *testserver.Client
	localPort int

	responding core.RetryPolicy
	ready      core.RetryPolicy
	stop       core.RetryPolicy
}

// NewLifecycle creates a Lifecycle forwarding localPort to the device's
// test-server port.
func NewLifecycle(bridge *adb.Bridge, client *testserver.Client, localPort int) *Lifecycle {
	return &Lifecycle{
		bridge:     bridge,
		client:     client,
		localPort:  localPort,
		responding: respondingPolicy,
		ready:      readyPolicy,
		stop:       stopPolicy,
	}
}

// Start launches the instrumentation runner and waits for the server to
// become responding, then ready.
func (l *Lifecycle) Start(ctx context.Context, app *Application, opts StartOptions) error {
	if app.TestServer == nil {
		return core.Errorf(core.ErrCategoryPrecondition, "no_test_server",
			"application %s declares no test server", app.Identifier)
	}

	packages, err := l.bridge.InstalledPackages(ctx)
	if err != nil {
		return err
	}
	if !lo.Contains(packages, app.Identifier) {
		return core.Errorf(core.ErrCategoryPrecondition, "app_not_installed",
			"application %s is not installed", app.Identifier)
	}
	if !lo.Contains(packages, app.TestServer.Identifier) {
		return core.Errorf(core.ErrCategoryPrecondition, "test_server_not_installed",
			"test server %s is not installed", app.TestServer.Identifier)
	}

	cmd := instrumentCommand(app, opts)
	log.Info().Str("package", app.Identifier).Str("cmd", cmd).Msg("starting test server")
	if _, err := l.bridge.Shell(ctx, cmd); err != nil {
		return core.Errorf(core.ErrCategoryBridge, "start_failed",
			"launching test server for %s failed", app.Identifier).WithCause(err)
	}

	// Forward before probing; the server may not be listening yet.
	if err := l.bridge.Forward(ctx, l.localPort, testserver.DevicePort); err != nil {
		return err
	}

	if err := l.responding.Run(ctx, func() error { return l.client.Ping(ctx) }, core.IsTransport); err != nil {
		if core.IsTimeout(err) {
			return core.NewError(core.ErrCategoryTimeout, "responding_timeout",
				"test server never responded").
				WithCause(err).
				WithDetails(map[string]interface{}{"probe": "ping", "port": l.localPort})
		}
		return err
	}
	log.Debug().Int("port", l.localPort).Msg("test server responding")

	if err := l.ready.Run(ctx, func() error { return l.client.Ready(ctx) }, core.IsTransport); err != nil {
		if core.IsTimeout(err) {
			return core.NewError(core.ErrCategoryTimeout, "ready_timeout",
				"test server responded but never became ready").
				WithCause(err).
				WithDetails(map[string]interface{}{"probe": "ready", "port": l.localPort})
		}
		return err
	}
	log.Info().Int("port", l.localPort).Msg("test server ready")
	return nil
}

// instrumentCommand builds the am instrument shell command. Caller-supplied
// environment arguments override the defaults; the test-server port is always
// injected and never overridable. Empty-valued keys are dropped: am would
// otherwise read the next -e as the value and corrupt the argument list.
func instrumentCommand(app *Application, opts StartOptions) string {
	runner := opts.TestRunner
	if runner == "" {
		runner = DefaultTestRunner
	}

	env := map[string]string{
		envClass:         DefaultInstrumentationClass,
		envTargetPackage: app.Identifier,
		envMainActivity:  opts.MainActivity,
	}
	for k, v := range opts.Env {
		env[k] = v
	}
	env[envTestServerPort] = fmt.Sprintf("%d", testserver.DevicePort)

	keys := lo.Keys(env)
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("am instrument")
	for _, k := range keys {
		if env[k] == "" {
			continue
		}
		fmt.Fprintf(&sb, " -e %s %s", k, quoteArg(env[k]))
	}
	fmt.Fprintf(&sb, " %s/%s", app.TestServer.Identifier, runner)
	return sb.String()
}

// quoteArg single-quotes a shell argument when it would otherwise split or
// expand inside the device shell.
func quoteArg(v string) string {
	if !strings.ContainsAny(v, " \t\"'$`\\") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// Stop shuts the test server down, best effort. A kill transport error is
// accepted only once a liveness probe shows a connection-level failure; an
// inconclusive probe means the kill is not confirmed and the attempt is
// retried.
func (l *Lifecycle) Stop(ctx context.Context) error {
	err := l.stop.Run(ctx, func() error {
		killErr := l.client.Kill(ctx)
		if killErr == nil {
			return nil
		}
		if core.IsTransport(killErr) {
			if pingErr := l.client.Ping(ctx); testserver.IsConnectionError(pingErr) {
				log.Debug().Msg("kill transport error but server gone, presuming success")
				return nil
			}
		}
		return killErr
	}, nil)
	if err != nil {
		return core.NewError(core.ErrCategoryTimeout, "stop_failed",
			"test server did not shut down").WithCause(err)
	}

	if err := l.bridge.RemoveForward(ctx, l.localPort); err != nil {
		log.Warn().Err(err).Int("port", l.localPort).Msg("could not remove forward")
	}
	return nil
}
