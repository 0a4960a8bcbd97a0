// ldtool is a CLI utility for working with brick model files and zip
// part-library archives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/brickhub/ldmodel/internal/config"
	"github.com/brickhub/ldmodel/internal/library"
	"github.com/brickhub/ldmodel/internal/logger"
	"github.com/brickhub/ldmodel/pkg/ldraw"
	"github.com/brickhub/ldmodel/pkg/partzip"
)

func main() {
	config.ParseFlags()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "info":
		cmdInfo(cfg, args)
	case "list", "ls":
		cmdList(args)
	case "roundtrip", "rt":
		cmdRoundtrip(cfg, args)
	case "pack":
		cmdPack(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ldtool - brick model and part-library utility

Usage:
  ldtool <command> [options]

Commands:
  info <model.ldr>                Show model information
  list <library.zip> [pattern]    List archive files (optional glob pattern)
  roundtrip <model.ldr>           Parse and re-emit a model as source text
  pack <model.ldr> <part> [out]   Build and pack one part's geometry

Examples:
  ldtool info models/car.ldr
  ldtool list complete.zip "3001*"
  ldtool roundtrip models/car.ldr
  ldtool pack models/car.ldr 3001.dat 3001.bin`)
}

// newManager builds the part-library manager from the configured
// archives and directories.
func newManager(cfg *config.Config) *library.Manager {
	m := library.NewManager()
	for _, dir := range cfg.Library.Dirs {
		m.AddDir(dir)
	}
	for _, path := range cfg.Library.Archives {
		if err := m.AddArchive(path); err != nil {
			logger.Warn("skipping archive", zap.String("path", path), zap.Error(err))
		}
	}
	return m
}

// loadModel parses a model file, resolving sub-files through the
// configured library.
func loadModel(cfg *config.Config, path string) (*ldraw.Loader, *ldraw.PartType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	manager := newManager(cfg)
	// The model's own directory has the highest priority.
	manager.AddDir(filepath.Dir(path))

	loader := ldraw.NewLoader(manager)
	loader.OnWarning = func(r ldraw.Report) {
		logger.Warn(r.Message, zap.Int("line", r.Line), zap.String("part", r.PartID))
	}
	loader.OnError = func(r ldraw.Report) {
		logger.Error(r.Message, zap.Int("line", r.Line), zap.String("part", r.PartID))
	}

	main, err := loader.LoadText(context.Background(), string(data))
	if err != nil {
		return nil, nil, err
	}
	return loader, main, nil
}

func cmdInfo(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ldtool info <model.ldr>")
		os.Exit(1)
	}

	loader, main, err := loadModel(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model:       %s\n", main.ID)
	if main.Description != "" {
		fmt.Printf("Description: %s\n", main.Description)
	}
	if main.Author != "" {
		fmt.Printf("Author:      %s\n", main.Author)
	}
	fmt.Printf("Steps:       %d\n", len(main.Steps))

	if count, err := main.CountParts(loader.Registry()); err == nil {
		fmt.Printf("Parts:       %d\n", count)
	}

	builder := ldraw.NewBuilder(loader.Registry())
	if err := builder.Build(main.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
		os.Exit(1)
	}
	g := main.Geometry()
	fmt.Printf("Geometry:    %d surfaces, %d lines, %d conditional lines\n",
		g.SurfaceCount(), len(g.Lines), len(g.CondLines))
}

func cmdList(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ldtool list <library.zip> [pattern]")
		os.Exit(1)
	}

	archive, err := partzip.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	pattern := ""
	if len(args) >= 2 {
		pattern = strings.ToLower(args[1])
	}

	count := 0
	for _, name := range archive.List() {
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, filepath.Base(name)); !ok {
				continue
			}
		}
		fmt.Println(name)
		count++
	}
	fmt.Printf("%d files\n", count)
}

func cmdRoundtrip(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ldtool roundtrip <model.ldr>")
		os.Exit(1)
	}

	loader, _, err := loadModel(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(loader.ToLDR())
}

func cmdPack(cfg *config.Config, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ldtool pack <model.ldr> <part> [out]")
		os.Exit(1)
	}

	loader, _, err := loadModel(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	id := ldraw.NormalizeID(args[1])
	builder := ldraw.NewBuilder(loader.Registry())
	if err := builder.Build(id); err != nil {
		fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
		os.Exit(1)
	}

	pt, state := loader.Registry().Lookup(id)
	if state != ldraw.EntryLoaded {
		fmt.Fprintf(os.Stderr, "Error: part %s not loaded\n", id)
		os.Exit(1)
	}
	payload, err := ldraw.PackGeometry(pt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := strings.ReplaceAll(id, "/", "_") + ".bin"
	if len(args) >= 3 {
		out = args[2]
	}
	if err := os.WriteFile(out, payload, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Packed %s: %d bytes -> %s\n", id, len(payload), out)
}
