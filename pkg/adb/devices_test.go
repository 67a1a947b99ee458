package adb

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/mahtabnejad90/calabash/pkg/core"
)

func TestParseDevices(t *testing.T) {
	out := "List of devices attached\nemulator-5554\tdevice\n0123456789ABCDEF\toffline\n\n"

	entries, err := parseDevices(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", entries)
	}
	if entries[0].Serial != "emulator-5554" || entries[0].State != "device" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Serial != "0123456789ABCDEF" || entries[1].State != "offline" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestParseDevicesEmptyListing(t *testing.T) {
	entries, err := parseDevices("List of devices attached\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestParseDevicesMissingHeader(t *testing.T) {
	_, err := parseDevices("adb: daemon not running\n")
	if err == nil {
		t.Fatal("expected parse error for missing header")
	}
	if !core.IsBridge(err) {
		t.Errorf("expected bridge category, got %v", err)
	}
}

func TestParseDevicesIgnoresDaemonNoise(t *testing.T) {
	out := "* daemon not running; starting now\n* daemon started successfully\nList of devices attached\nserial-1\tdevice\n"

	entries, err := parseDevices(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Serial != "serial-1" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

// skipIfNoDevice skips the test if no device is connected.
func skipIfNoDevice(t *testing.T) {
	t.Helper()
	cmd := exec.Command("adb", "devices")
	out, err := cmd.Output()
	if err != nil {
		t.Skip("adb not available")
	}
	deviceCount := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "\tdevice") {
			deviceCount++
		}
	}
	if deviceCount == 0 {
		t.Skip("no device connected")
	}
}

func TestListDevices_Real(t *testing.T) {
	skipIfNoDevice(t)

	entries, err := ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one device")
	}
	if entries[0].Serial == "" {
		t.Error("device serial is empty")
	}
}

func TestFirstAvailable_Real(t *testing.T) {
	skipIfNoDevice(t)

	bridge, err := FirstAvailable()
	if err != nil {
		t.Fatalf("FirstAvailable failed: %v", err)
	}
	if bridge.Serial() == "" {
		t.Error("device serial is empty")
	}
}
