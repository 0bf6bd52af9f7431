package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"morpher/internal/batch"
	"morpher/internal/config"
	"morpher/internal/morph"
	"morpher/internal/project"
	"morpher/internal/source"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to a .json or .toml config file")
	projectFile := flag.String("project", "", "Path to the morph project JSON")
	outputDir := flag.String("output", "", "Output directory (default: <project>-frames)")
	frames := flag.Int("frames", 0, "Number of frames in the sweep (default: 30)")
	format := flag.String("format", "", "Frame format: webp, png or jpeg (default: webp)")
	quality := flag.Int("quality", 0, "JPEG quality 1-100 (default: 90)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	blendMode := flag.String("blend", "", "Blend mode (default: lighter)")
	touch := flag.String("touch", "", "Final touch, e.g. sharpen or grayscale+opaque")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		Project:    *projectFile,
		OutputDir:  *outputDir,
		Frames:     *frames,
		Blend:      *blendMode,
		FinalTouch: *touch,
		Format:     *format,
		Quality:    *quality,
		Workers:    *workers,
	})

	if cfg.Project == "" {
		fmt.Fprintln(os.Stderr, "Error: no project. Use -project or a config file.")
		os.Exit(1)
	}

	doc, err := project.Read(cfg.Project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading project: %v\n", err)
		os.Exit(1)
	}
	if err := doc.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(doc.Images) == 0 {
		fmt.Println("No images to morph.")
		os.Exit(0)
	}

	easing, err := morph.EasingByName(cfg.Easing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (have %v)\n", err, morph.EasingNames())
		os.Exit(1)
	}

	// Print summary
	fmt.Printf("Morph %s → %s\n", filepath.Base(cfg.Project), cfg.Format)
	fmt.Printf("Images: %d, Points: %d, Triangles: %d\n", len(doc.Images), len(doc.Images[0].Points), len(doc.Triangles))
	fmt.Printf("Frames: %d, Workers: %d, Blend: %s\n", cfg.Frames, cfg.Workers, cfg.Blend)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()

	// Run batch
	batchCfg := batch.Config{
		Doc:        doc,
		Resolver:   source.NewCache(source.Loader{}),
		OutputDir:  cfg.OutputDir,
		Frames:     cfg.Frames,
		From:       cfg.From,
		To:         cfg.To,
		Easing:     easing,
		Blend:      cfg.Blend,
		FinalTouch: cfg.FinalTouch,
		ClipOffset: cfg.ClipOffset,
		MaxSize:    cfg.MaxSize,
		Trim:       cfg.Trim,
		Format:     cfg.Format,
		Quality:    cfg.Quality,
		Workers:    cfg.Workers,
	}

	results := batch.Run(context.Background(), batchCfg)

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	success, failed := 0, 0
	var errors []batch.Result
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failed++
			errors = append(errors, r)
		}
	}

	fmt.Printf("Rendered: %d/%d\n", success, len(results))

	if len(errors) > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		limit := min(20, len(errors))
		for _, e := range errors[:limit] {
			fmt.Printf("  frame %d: %s\n", e.Frame, e.Error)
		}
	}

	// Write manifest
	sources := make([]string, len(doc.Images))
	for i, img := range doc.Images {
		sources[i] = img.Src
	}
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	if err := batch.WriteManifest(manifestPath, sources, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
