package main

import (
	"fmt"
	"os"

	"github.com/zboralski/lattice/render"

	"cilmeta/internal/refgraph"
	"cilmeta/internal/sig"
)

func cmdGraph(args []string) error {
	var (
		common  commonFlags
		inPath  string
		outPath string
		title   string
	)
	fs := newFlagSet("graph")
	fs.StringVar(&inPath, "manifest", "", "TOML definition manifest")
	fs.StringVar(&outPath, "out", "", "DOT output file (default stdout)")
	fs.StringVar(&title, "title", "type references", "graph title")
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if inPath == "" {
		return fmt.Errorf("--manifest is required")
	}
	e, err := common.setup()
	if err != nil {
		return err
	}

	arena, err := loadArena(inPath)
	if err != nil {
		return err
	}
	g, diags, err := refgraph.Build(arena, &sig.ReadContext{Resolver: arena, Options: e.opts})
	if err != nil {
		return err
	}
	for _, d := range diags.Items() {
		e.log.Warn("skipped signature", "diag", d.String())
	}
	e.log.Info("reference graph", "nodes", len(g.Nodes), "edges", len(g.Edges))

	dot := render.DOT(g, title)
	if outPath == "" {
		_, err := fmt.Fprint(os.Stdout, dot)
		return err
	}
	return os.WriteFile(outPath, []byte(dot), 0644)
}
