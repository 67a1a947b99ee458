// Package device composes the bridge and test-server client into the public
// device controller: app lifecycle, test-server lifecycle and RPC operations.
package device

// Application identifies an installable app by package name and APK path,
// optionally paired with the test-server application instrumented against it.
// An application with a test server needs both installed to be runnable.
type Application struct {
	Identifier string
	Path       string
	TestServer *Application
}

// NewApplication creates an Application for the given package identifier and
// APK path.
func NewApplication(identifier, path string) *Application {
	return &Application{Identifier: identifier, Path: path}
}

// WithTestServer associates the test-server application and returns the
// receiver for chaining.
func (a *Application) WithTestServer(ts *Application) *Application {
	a.TestServer = ts
	return a
}
