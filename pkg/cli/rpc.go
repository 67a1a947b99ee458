package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mahtabnejad90/calabash/pkg/gesture"
)

var actionCommand = &cli.Command{
	Name:      "action",
	Usage:     "Execute a named test-server action",
	ArgsUsage: "<name> [arg]...",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("an action name is required")
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}

		args := make([]interface{}, 0, c.NArg()-1)
		for _, a := range c.Args().Slice()[1:] {
			args = append(args, a)
		}
		result, err := d.PerformAction(context.Background(), c.Args().First(), args...)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "Query UI elements and run a method against each match",
	ArgsUsage: "<query> [method-arg]...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "method",
			Usage: "Method to run against each matched element",
			Value: "query",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("a query string is required")
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}

		args := make([]interface{}, 0, c.NArg()-1)
		for _, a := range c.Args().Slice()[1:] {
			args = append(args, a)
		}
		results, err := d.MapRoute(context.Background(), c.Args().First(), c.String("method"), args...)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var tapCommand = &cli.Command{
	Name:      "tap",
	Usage:     "Tap the element matching a query at screen coordinates",
	ArgsUsage: "<query> <x> <y>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "double",
			Usage: "Double-tap instead of single tap",
		},
		&cli.DurationFlag{
			Name:  "hold",
			Usage: "Hold duration, turning the tap into a long press",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return fmt.Errorf("usage: tap <query> <x> <y>")
		}
		x, y, err := parseCoords(c.Args().Get(1), c.Args().Get(2))
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		query := c.Args().First()
		switch {
		case c.Bool("double"):
			return d.DoubleTap(ctx, query, x, y, nil)
		case c.Duration("hold") > 0:
			return d.LongPress(ctx, query, x, y, nil, c.Duration("hold"))
		default:
			return d.Tap(ctx, query, x, y, nil)
		}
	},
}

var swipeCommand = &cli.Command{
	Name:      "swipe",
	Usage:     "Swipe between two points on the element matching a query",
	ArgsUsage: "<query> <fromX> <fromY> <toX> <toY>",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Swipe duration",
			Value: 300 * time.Millisecond,
		},
		&cli.BoolFlag{
			Name:  "flick",
			Usage: "Flick instead of swipe",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 5 {
			return fmt.Errorf("usage: swipe <query> <fromX> <fromY> <toX> <toY>")
		}
		fromX, fromY, err := parseCoords(c.Args().Get(1), c.Args().Get(2))
		if err != nil {
			return err
		}
		toX, toY, err := parseCoords(c.Args().Get(3), c.Args().Get(4))
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}

		from := gesture.Point{X: fromX, Y: fromY}
		to := gesture.Point{X: toX, Y: toY}
		ctx := context.Background()
		if c.Bool("flick") {
			return d.Flick(ctx, c.Args().First(), from, to, c.Duration("duration"))
		}
		return d.Swipe(ctx, c.Args().First(), from, to, c.Duration("duration"))
	},
}

var screenshotCommand = &cli.Command{
	Name:      "screenshot",
	Usage:     "Capture the device screen to a PNG file",
	ArgsUsage: "[path]",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			path = fmt.Sprintf("screenshot-%s.png", time.Now().Format("20060102-150405"))
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		d, err := connect(c, cfg)
		if err != nil {
			return err
		}
		if err := d.Screenshot(context.Background(), path); err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func parseCoords(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x coordinate %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y coordinate %q", ys)
	}
	return x, y, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
