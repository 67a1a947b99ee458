package adb

// NewTestBridge creates a Bridge backed by the given runner, skipping binary
// lookup and connectivity checks. This should only be used in tests.
func NewTestBridge(serial string, r Runner) *Bridge {
	return &Bridge{
		serial: serial,
		path:   "adb",
		run:    r,
	}
}
