package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

func cmdSources(args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	cfgPath := fs.String("config", "pandemic.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, ".env")
	if err != nil {
		return err
	}
	app, err := openApp(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer app.close()

	return app.sources(context.Background(), fs.Args(), os.Stdout)
}

func (a *app) sources(ctx context.Context, args []string, w io.Writer) error {
	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: pandemic sources set <id> <location>")
		}
		if err := a.catalog.SetLocation(args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s -> %s\n", args[1], args[2])
		return nil
	case "check":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		newChecker(a).CheckAll(ctx)
	default:
		return fmt.Errorf("unknown sources action %q (list, set, check)", action)
	}

	entries, err := a.catalog.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := ""
		if e.LastStatus != nil {
			status = fmt.Sprintf("  [%d]", *e.LastStatus)
		}
		read := ""
		if e.RowsValid != nil {
			read = fmt.Sprintf("  rows=%d", *e.RowsValid)
		}
		fmt.Fprintf(w, "  %-15s %-6s %s%s%s\n", e.ID, e.Pandemic, e.Location, status, read)
	}
	return nil
}
