// Package cli provides the command-line interface for calabash.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mahtabnejad90/calabash/pkg/config"
	"github.com/mahtabnejad90/calabash/pkg/device"
	"github.com/mahtabnejad90/calabash/pkg/testserver"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "serial",
		Aliases: []string{"s"},
		Usage:   "Device serial to target (default: first connected device)",
		EnvVars: []string{"CALABASH_SERIAL"},
	},
	&cli.IntFlag{
		Name:    "port",
		Usage:   "Local port forwarded to the on-device test server",
		Value:   testserver.DefaultLocalPort,
		EnvVars: []string{"CALABASH_PORT"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to calabash.yaml (default: search working directory)",
		EnvVars: []string{"CALABASH_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"CALABASH_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "calabash",
		Usage:   "Drive Android apps through the calabash instrumentation test server",
		Version: Version,
		Description: `Calabash installs an app and its instrumentation test server on a
connected Android device, starts the server, and drives it over HTTP.

Examples:
  calabash devices
  calabash install --app-file app.apk --test-server-apk test-server.apk
  calabash run
  calabash query "button marked:'Save'"
  calabash tap "button marked:'Save'" 100 200`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			setupLogging(c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			devicesCommand,
			installCommand,
			uninstallCommand,
			clearCommand,
			runCommand,
			stopCommand,
			actionCommand,
			queryCommand,
			tapCommand,
			swipeCommand,
			screenshotCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig loads the workspace configuration: an explicit --config path, or
// whatever calabash.yaml the working directory holds.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadFromDir(".")
}

// connect resolves the target device from flags and config and builds the
// controller for it. Flags override config.
func connect(c *cli.Context, cfg *config.Config) (*device.Device, error) {
	serial := c.String("serial")
	if serial == "" {
		serial = cfg.Serial
	}
	port := cfg.LocalPort
	if c.IsSet("port") {
		port = c.Int("port")
	}
	return device.New(serial, port)
}
