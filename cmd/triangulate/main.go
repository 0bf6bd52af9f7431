package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"morpher/internal/delaunay"
	"morpher/internal/geom"
	"morpher/internal/project"
	"morpher/internal/source"
)

func main() {
	out := flag.String("o", "", "Write the result here instead of overwriting the project")
	ref := flag.Int("image", 0, "Image whose points are triangulated")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: triangulate [-o out.json] [-image N] project.json")
		os.Exit(1)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	doc, err := project.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *ref < 0 || *ref >= len(doc.Images) {
		fmt.Fprintf(os.Stderr, "Error: image %d out of range (%d images)\n", *ref, len(doc.Images))
		os.Exit(1)
	}
	img := doc.Images[*ref]

	// Normalize to the image size so the triangulation does not depend on
	// resolution. Fall back to the point bounds when the source can't load.
	var w, h float64
	src := project.ResolveSrc(filepath.Dir(path), img.Src)
	if raster, err := (source.Loader{}).Resolve(context.Background(), src); err == nil {
		w, h = float64(raster.Bounds().Dx()), float64(raster.Bounds().Dy())
	} else {
		fmt.Fprintf(os.Stderr, "Warning: %v; normalizing by point bounds\n", err)
		b := geom.BoundsOf(img.Points)
		w, h = b.Right(), b.Bottom()
	}
	pts := make([]geom.Point, len(img.Points))
	for i, p := range img.Points {
		pts[i] = p
		if w > 0 {
			pts[i].X /= w
		}
		if h > 0 {
			pts[i].Y /= h
		}
	}

	tris := delaunay.Triangulate(pts)
	if tris == nil {
		tris = [][3]int{}
	}
	doc.Triangles = tris
	if err := doc.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dst := path
	if *out != "" {
		dst = *out
	}
	if err := project.Write(dst, doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Points: %d, Triangles: %d\n", len(pts), len(tris))
	fmt.Printf("Wrote %s\n", dst)
}
