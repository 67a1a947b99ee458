package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mahtabnejad90/calabash/pkg/adb"
	"github.com/mahtabnejad90/calabash/pkg/config"
	"github.com/mahtabnejad90/calabash/pkg/device"
)

// appFlags configure the application under test on commands that need one.
// Each flag overrides the corresponding calabash.yaml field.
var appFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "app",
		Usage: "Package identifier of the app under test",
	},
	&cli.StringFlag{
		Name:  "app-file",
		Usage: "APK of the app under test",
	},
	&cli.StringFlag{
		Name:  "test-server",
		Usage: "Package identifier of the instrumentation test server",
	},
	&cli.StringFlag{
		Name:  "test-server-apk",
		Usage: "APK of the instrumentation test server",
	},
}

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List connected devices",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "long",
			Aliases: []string{"l"},
			Usage:   "Include model, brand and SDK level",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		entries, err := adb.ListDevices(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No devices connected")
			return nil
		}
		for _, e := range entries {
			if !c.Bool("long") || e.State != "device" {
				fmt.Printf("%s\t%s\n", e.Serial, e.State)
				continue
			}
			bridge, err := adb.New(e.Serial)
			if err != nil {
				fmt.Printf("%s\t%s\n", e.Serial, e.State)
				continue
			}
			info, err := bridge.Info(ctx)
			if err != nil {
				fmt.Printf("%s\t%s\n", e.Serial, e.State)
				continue
			}
			kind := "device"
			if info.IsEmulator {
				kind = "emulator"
			}
			fmt.Printf("%s\t%s\t%s %s\tsdk:%s\t%s\n", e.Serial, e.State, info.Brand, info.Model, info.SDK, kind)
		}
		return nil
	},
}

var installCommand = &cli.Command{
	Name:  "install",
	Usage: "Install the app and its test server, replacing existing installs",
	Flags: appFlags,
	Action: func(c *cli.Context) error {
		cfg, app, err := resolveApp(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}
		if err := d.Install(context.Background(), app); err != nil {
			return err
		}
		fmt.Printf("Installed %s on %s\n", app.Identifier, d.Serial())
		return nil
	},
}

var uninstallCommand = &cli.Command{
	Name:  "uninstall",
	Usage: "Uninstall the app under test",
	Flags: appFlags,
	Action: func(c *cli.Context) error {
		cfg, app, err := resolveApp(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}
		if err := d.Uninstall(context.Background(), app); err != nil {
			return err
		}
		fmt.Printf("Uninstalled %s from %s\n", app.Identifier, d.Serial())
		return nil
	},
}

var clearCommand = &cli.Command{
	Name:  "clear",
	Usage: "Clear the app's stored data",
	Flags: appFlags,
	Action: func(c *cli.Context) error {
		cfg, app, err := resolveApp(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}
		if err := d.ClearData(context.Background(), app); err != nil {
			return err
		}
		fmt.Printf("Cleared data for %s\n", app.Identifier)
		return nil
	},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Install what is missing and start the test server",
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Extra instrumentation arguments (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "main-activity",
			Usage: "Main activity of the app under test",
		},
		&cli.BoolFlag{
			Name:  "reinstall",
			Usage: "Replace existing installs instead of keeping them",
		},
		&cli.BoolFlag{
			Name:  "detach",
			Usage: "Exit once the server is ready instead of stopping it on interrupt",
		},
	}, appFlags...),
	Action: func(c *cli.Context) error {
		cfg, app, err := resolveApp(c)
		if err != nil {
			return err
		}
		if app.TestServer == nil {
			return fmt.Errorf("run requires a test server; set testServer/testServerApk in calabash.yaml or pass --test-server/--test-server-apk")
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if c.Bool("reinstall") {
			err = d.Install(ctx, app)
		} else {
			err = d.EnsureInstalled(ctx, app)
		}
		if err != nil {
			return err
		}

		opts := cfg.StartOptions()
		if c.IsSet("main-activity") {
			opts.MainActivity = c.String("main-activity")
		}
		for k, v := range parseEnvVars(c.StringSlice("env")) {
			if opts.Env == nil {
				opts.Env = make(map[string]string)
			}
			opts.Env[k] = v
		}

		if err := d.StartTestServer(ctx, app, opts); err != nil {
			return err
		}
		fmt.Printf("Test server ready on 127.0.0.1:%d\n", d.LocalPort())

		if c.Bool("detach") {
			return nil
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		fmt.Println("Press Ctrl+C to stop")
		<-sigCh

		fmt.Println("Stopping test server...")
		return d.StopTestServer(ctx)
	},
}

var stopCommand = &cli.Command{
	Name:  "stop",
	Usage: "Shut the test server down and remove the port forward",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}
		if err := d.StopTestServer(context.Background()); err != nil {
			return err
		}
		fmt.Println("Test server stopped")
		return nil
	},
}

// resolveApp loads the workspace config and merges app flags over it.
func resolveApp(c *cli.Context) (*config.Config, *device.Application, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if v := c.String("app"); v != "" {
		cfg.App = v
	}
	if v := c.String("app-file"); v != "" {
		cfg.AppFile = v
	}
	if v := c.String("test-server"); v != "" {
		cfg.TestServer = v
	}
	if v := c.String("test-server-apk"); v != "" {
		cfg.TestServerAPK = v
	}
	if cfg.App == "" {
		return nil, nil, fmt.Errorf("no app specified; set app in calabash.yaml or pass --app")
	}
	return cfg, cfg.Application(), nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
