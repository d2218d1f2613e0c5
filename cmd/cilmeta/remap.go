package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"cilmeta/internal/builder"
	"cilmeta/internal/manifest"
	"cilmeta/internal/output"
)

func cmdRemap(args []string) error {
	var (
		common    commonFlags
		inPath    string
		outPath   string
		mapPath   string
		mapFormat string
		workers   int
	)
	fs := newFlagSet("remap")
	fs.StringVar(&inPath, "manifest", "", "TOML definition manifest")
	fs.StringVar(&outPath, "out", "", "rebuilt manifest (default stdout)")
	fs.StringVar(&mapPath, "map", "", "write the token map to this file")
	fs.StringVar(&mapFormat, "map-format", "json", "token map format: json or cbor")
	fs.IntVar(&workers, "workers", 0, "concurrent signature patchers (default from config)")
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if inPath == "" {
		return fmt.Errorf("--manifest is required")
	}
	format, err := output.ParseFormat(mapFormat)
	if err != nil {
		return err
	}
	e, err := common.setup()
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = e.cfg.Rebuild.Workers
	}

	arena, err := loadArena(inPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := builder.Rebuild(ctx, arena, builder.Options{
		Workers: workers,
		Decode:  e.opts,
		Logger:  e.log,
	})
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	if mapPath != "" {
		if err := output.WriteFile(mapPath, format, output.NewTokenMapReport(res)); err != nil {
			return err
		}
		e.log.Info("wrote token map", "path", mapPath, "entries", res.Stats.Registered)
	}

	rebuilt, err := manifest.Rebuilt(arena, res)
	if err != nil {
		return err
	}
	if outPath == "" {
		return rebuilt.Write(os.Stdout)
	}
	if err := rebuilt.Save(outPath); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d definitions: %d patched, %d unchanged, %d failed\n",
		res.Stats.Registered, res.Stats.Patched, res.Stats.Unchanged, res.Stats.Failed)
	return nil
}
