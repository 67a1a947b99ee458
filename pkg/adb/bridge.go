// Package adb wraps invocation of the adb device bridge.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mahtabnejad90/calabash/pkg/core"
)

// Runner executes a bridge binary and returns captured stdout/stderr.
// The default runner shells out to adb; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Bridge invokes adb commands scoped to one device serial.
type Bridge struct {
	serial string
	path   string
	run    Runner
}

// New creates a Bridge for the given serial. An empty serial auto-detects the
// first connected device. The device must reach the "device" state within a
// short wait or an error is returned.
func New(serial string) (*Bridge, error) {
	path, err := findADB()
	if err != nil {
		return nil, err
	}

	b := &Bridge{path: path, run: execRunner{}}

	if serial == "" {
		serial, err = firstSerial(context.Background(), b)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}
	b.serial = serial

	if err := b.WaitForDevice(context.Background(), 5*time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	return b, nil
}

// findADB locates the adb binary on PATH.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK platform-tools are installed")
}

// Serial returns the device serial this bridge is scoped to.
func (b *Bridge) Serial() string {
	return b.serial
}

// Command runs an adb command against the device and returns captured stdout.
// A non-zero exit is reported as a bridge error carrying captured stderr.
func (b *Bridge) Command(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if b.serial != "" {
		cmdArgs = append(cmdArgs, "-s", b.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	log.Debug().Str("serial", b.serial).Str("cmd", strings.Join(args, " ")).Msg("adb command")

	stdout, stderr, err := b.run.Run(ctx, b.path, cmdArgs...)
	if err != nil {
		log.Error().Err(err).Str("stderr", stderr).Str("cmd", strings.Join(args, " ")).Msg("adb command failed")
		return "", core.Errorf(core.ErrCategoryBridge, "command_failed",
			"adb %s failed", strings.Join(args, " ")).
			WithCause(err).
			WithDetails(map[string]interface{}{"stderr": stderr, "stdout": stdout})
	}
	return stdout, nil
}

// CommandTimeout runs Command under an additional per-call deadline.
func (b *Bridge) CommandTimeout(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return b.Command(ctx, args...)
}

// Shell executes a shell command on the device.
func (b *Bridge) Shell(ctx context.Context, cmd string) (string, error) {
	return b.Command(ctx, "shell", cmd)
}

// Forward creates a TCP port forward from the host to the device.
func (b *Bridge) Forward(ctx context.Context, localPort, devicePort int) error {
	_, err := b.Command(ctx, "forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", devicePort))
	return err
}

// RemoveForward removes a host port forward.
func (b *Bridge) RemoveForward(ctx context.Context, localPort int) error {
	_, err := b.Command(ctx, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// InstalledPackages lists the package identifiers installed on the device.
// Always a live query; installation state is never cached.
func (b *Bridge) InstalledPackages(ctx context.Context) ([]string, error) {
	out, err := b.Shell(ctx, "pm list packages")
	if err != nil {
		return nil, err
	}

	lines := strings.Split(out, "\n")
	packages := lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "package:") {
			return "", false
		}
		return strings.TrimPrefix(line, "package:"), true
	})
	return packages, nil
}

// PackageInstalled reports whether pkg is installed on the device.
func (b *Bridge) PackageInstalled(ctx context.Context, pkg string) (bool, error) {
	packages, err := b.InstalledPackages(ctx)
	if err != nil {
		return false, err
	}
	return lo.Contains(packages, pkg), nil
}

// Screenshot captures the device screen as PNG bytes via screencap.
func (b *Bridge) Screenshot(ctx context.Context) ([]byte, error) {
	out, err := b.Command(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// WaitForDevice waits for the device to reach the "device" state.
func (b *Bridge) WaitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.isConnected(ctx) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return core.Errorf(core.ErrCategoryTimeout, "device_wait", "timeout waiting for device %s", b.serial)
}

// isConnected checks the adb transport state for this serial.
func (b *Bridge) isConnected(ctx context.Context) bool {
	out, err := b.Command(ctx, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// Getprop reads a system property, trimmed.
func (b *Bridge) Getprop(ctx context.Context, prop string) (string, error) {
	out, err := b.Shell(ctx, "getprop "+prop)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Info contains basic device information.
type Info struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// Info returns basic device information.
func (b *Bridge) Info(ctx context.Context) (Info, error) {
	info := Info{Serial: b.serial}

	if model, err := b.Getprop(ctx, "ro.product.model"); err == nil {
		info.Model = model
	}
	if sdk, err := b.Getprop(ctx, "ro.build.version.sdk"); err == nil {
		info.SDK = sdk
	}
	if brand, err := b.Getprop(ctx, "ro.product.brand"); err == nil {
		info.Brand = brand
	}
	qemu, _ := b.Getprop(ctx, "ro.kernel.qemu")
	info.IsEmulator = qemu == "1"

	return info, nil
}
