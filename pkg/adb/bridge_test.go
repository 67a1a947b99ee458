package adb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mahtabnejad90/calabash/pkg/core"
)

// fakeRunner replays canned output per command line.
type fakeRunner struct {
	calls   []string
	handler func(args []string) (string, string, error)
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, string, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	return f.handler(args)
}

func TestCommandScopesSerial(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "ok", "", nil
	}}
	b := NewTestBridge("emulator-5554", runner)

	out, err := b.Command(context.Background(), "get-state")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected ok, got %q", out)
	}
	if runner.calls[0] != "-s emulator-5554 get-state" {
		t.Errorf("unexpected command line: %q", runner.calls[0])
	}
}

func TestCommandFailureCarriesStderr(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "", "error: device offline", errors.New("exit status 1")
	}}
	b := NewTestBridge("emulator-5554", runner)

	_, err := b.Command(context.Background(), "shell", "true")
	if err == nil {
		t.Fatal("expected error")
	}
	if !core.IsBridge(err) {
		t.Errorf("expected bridge category, got %v", err)
	}
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		t.Fatal("expected core.Error")
	}
	if cerr.Details["stderr"] != "error: device offline" {
		t.Errorf("expected captured stderr, got %v", cerr.Details)
	}
}

func TestShell(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "1", "", nil
	}}
	b := NewTestBridge("serial-1", runner)

	if _, err := b.Shell(context.Background(), "getprop ro.kernel.qemu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls[0] != "-s serial-1 shell getprop ro.kernel.qemu" {
		t.Errorf("unexpected command line: %q", runner.calls[0])
	}
}

func TestForward(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "", "", nil
	}}
	b := NewTestBridge("serial-1", runner)

	if err := b.Forward(context.Background(), 34777, 7102); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls[0] != "-s serial-1 forward tcp:34777 tcp:7102" {
		t.Errorf("unexpected command line: %q", runner.calls[0])
	}
}

func TestRemoveForward(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "", "", nil
	}}
	b := NewTestBridge("serial-1", runner)

	if err := b.RemoveForward(context.Background(), 34777); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls[0] != "-s serial-1 forward --remove tcp:34777" {
		t.Errorf("unexpected command line: %q", runner.calls[0])
	}
}

func TestInstalledPackages(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "package:com.example.app\npackage:sh.calaba.testserver\n\njunk line\n", "", nil
	}}
	b := NewTestBridge("serial-1", runner)

	packages, err := b.InstalledPackages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("expected 2 packages, got %v", packages)
	}
	if packages[0] != "com.example.app" || packages[1] != "sh.calaba.testserver" {
		t.Errorf("unexpected packages: %v", packages)
	}
}

func TestPackageInstalled(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return "package:com.example.app\n", "", nil
	}}
	b := NewTestBridge("serial-1", runner)

	installed, err := b.PackageInstalled(context.Background(), "com.example.app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !installed {
		t.Error("expected installed")
	}

	installed, err = b.PackageInstalled(context.Background(), "com.example.other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if installed {
		t.Error("expected not installed")
	}
}

func TestInfo(t *testing.T) {
	props := map[string]string{
		"getprop ro.product.model":     "Pixel 6\n",
		"getprop ro.build.version.sdk": "34\n",
		"getprop ro.product.brand":     "google\n",
		"getprop ro.kernel.qemu":       "1\n",
	}
	runner := &fakeRunner{handler: func(args []string) (string, string, error) {
		return props[args[len(args)-1]], "", nil
	}}
	b := NewTestBridge("serial-1", runner)

	info, err := b.Info(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Model != "Pixel 6" || info.SDK != "34" || info.Brand != "google" {
		t.Errorf("unexpected info: %+v", info)
	}
	if !info.IsEmulator {
		t.Error("expected emulator detection")
	}
}
