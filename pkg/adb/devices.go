package adb

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mahtabnejad90/calabash/pkg/core"
)

// devicesHeader opens the `adb devices` listing; its absence means the
// output is not a device list at all.
const devicesHeader = "List of devices attached"

// DeviceEntry is one record from the `adb devices` listing.
type DeviceEntry struct {
	Serial string
	State  string
}

// ListDevices enumerates the devices attached to the local adb server.
func ListDevices(ctx context.Context) ([]DeviceEntry, error) {
	path, err := findADB()
	if err != nil {
		return nil, err
	}
	b := &Bridge{path: path, run: execRunner{}}
	out, err := b.Command(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out)
}

// parseDevices parses `adb devices` output. The header line is required;
// each following record starts with a whitespace-delimited serial token.
func parseDevices(out string) ([]DeviceEntry, error) {
	lines := strings.Split(out, "\n")

	headerAt := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), devicesHeader) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, core.NewError(core.ErrCategoryBridge, "devices_parse",
			"device listing missing header").
			WithDetails(map[string]interface{}{"output": out})
	}

	entries := lo.FilterMap(lines[headerAt+1:], func(line string, _ int) (DeviceEntry, bool) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return DeviceEntry{}, false
		}
		entry := DeviceEntry{Serial: fields[0]}
		if len(fields) > 1 {
			entry.State = fields[1]
		}
		return entry, true
	})
	return entries, nil
}

// firstSerial returns the serial of the first device in the "device" state.
func firstSerial(ctx context.Context, b *Bridge) (string, error) {
	out, err := b.Command(ctx, "devices")
	if err != nil {
		return "", err
	}
	entries, err := parseDevices(out)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.State == "device" {
			return e.Serial, nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// FirstAvailable creates a Bridge for the first connected device.
func FirstAvailable() (*Bridge, error) {
	return New("")
}
