package device

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mahtabnejad90/calabash/pkg/adb"
	"github.com/mahtabnejad90/calabash/pkg/core"
)

// installTimeout bounds one bridge install or uninstall invocation.
const installTimeout = 60 * time.Second

// Installer drives app installation through the bridge, verifying every
// mutation against a fresh installed-package query. State is never cached.
type Installer struct {
	bridge *adb.Bridge
}

// NewInstaller creates an Installer over the given bridge.
func NewInstaller(bridge *adb.Bridge) *Installer {
	return &Installer{bridge: bridge}
}

// Install installs app, replacing any existing installation, then recurses
// into the associated test-server application.
func (i *Installer) Install(ctx context.Context, app *Application) error {
	installed, err := i.bridge.PackageInstalled(ctx, app.Identifier)
	if err != nil {
		return err
	}
	if installed {
		log.Info().Str("package", app.Identifier).Msg("already installed, uninstalling first")
		if err := i.Uninstall(ctx, app); err != nil {
			return err
		}
	}

	if err := i.installOne(ctx, app); err != nil {
		return err
	}

	if app.TestServer != nil {
		return i.Install(ctx, app.TestServer)
	}
	return nil
}

// EnsureInstalled installs app only if it is not already present, recursing
// into the associated test-server application the same way. A second call
// observing installed state performs no bridge mutation.
func (i *Installer) EnsureInstalled(ctx context.Context, app *Application) error {
	installed, err := i.bridge.PackageInstalled(ctx, app.Identifier)
	if err != nil {
		return err
	}
	if !installed {
		if err := i.installOne(ctx, app); err != nil {
			return err
		}
	}

	if app.TestServer != nil {
		return i.EnsureInstalled(ctx, app.TestServer)
	}
	return nil
}

// installOne performs one bridge install with postcondition verification.
func (i *Installer) installOne(ctx context.Context, app *Application) error {
	log.Info().Str("package", app.Identifier).Str("path", app.Path).Msg("installing")

	out, err := i.bridge.CommandTimeout(ctx, installTimeout, "install", "-r", app.Path)
	if err != nil {
		return err
	}
	if !successReported(out) {
		return core.Errorf(core.ErrCategoryBridge, "install_failed",
			"install of %s did not report success", app.Identifier).
			WithDetails(map[string]interface{}{"output": out})
	}

	installed, err := i.bridge.PackageInstalled(ctx, app.Identifier)
	if err != nil {
		return err
	}
	if !installed {
		return core.Errorf(core.ErrCategoryBridge, "install_not_verified",
			"install of %s reported success but the package is not present", app.Identifier).
			WithDetails(map[string]interface{}{"output": out})
	}
	return nil
}

// Uninstall removes app from the device and verifies its absence.
func (i *Installer) Uninstall(ctx context.Context, app *Application) error {
	log.Info().Str("package", app.Identifier).Msg("uninstalling")

	out, err := i.bridge.CommandTimeout(ctx, installTimeout, "uninstall", app.Identifier)
	if err != nil {
		return err
	}
	if !successReported(out) {
		return core.Errorf(core.ErrCategoryBridge, "uninstall_failed",
			"uninstall of %s did not report success", app.Identifier).
			WithDetails(map[string]interface{}{"output": out})
	}

	installed, err := i.bridge.PackageInstalled(ctx, app.Identifier)
	if err != nil {
		return err
	}
	if installed {
		return core.Errorf(core.ErrCategoryBridge, "uninstall_not_verified",
			"uninstall of %s reported success but the package is still present", app.Identifier).
			WithDetails(map[string]interface{}{"output": out})
	}
	return nil
}

// ClearData clears app's stored data. The package must currently be
// installed.
func (i *Installer) ClearData(ctx context.Context, app *Application) error {
	installed, err := i.bridge.PackageInstalled(ctx, app.Identifier)
	if err != nil {
		return err
	}
	if !installed {
		return core.Errorf(core.ErrCategoryPrecondition, "not_installed",
			"cannot clear data: %s is not installed", app.Identifier)
	}

	out, err := i.bridge.Shell(ctx, "pm clear "+app.Identifier)
	if err != nil {
		return err
	}
	if !successReported(out) {
		return core.Errorf(core.ErrCategoryBridge, "clear_data_failed",
			"clearing data of %s did not report success", app.Identifier).
			WithDetails(map[string]interface{}{"output": out})
	}
	return nil
}

// successReported reports whether the last non-empty output line reads
// "success", case-insensitively.
func successReported(out string) bool {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return strings.EqualFold(line, "success")
		}
	}
	return false
}
