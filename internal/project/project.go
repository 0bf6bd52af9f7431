// Package project reads and writes the morph document format:
//
//	{"images": [{"src": ..., "x": 0, "y": 0, "points": [{"x": 1, "y": 2}, ...]}],
//	 "triangles": [[0, 1, 2], ...]}
//
// Points are pixel coordinates in each image's own space. Triangles are
// index triples shared by every image.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"morpher/internal/geom"
)

var ErrMismatch = errors.New("project: inconsistent document")

type Image struct {
	Src    string       `json:"src"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Points []geom.Point `json:"points"`
}

type Document struct {
	Images    []Image  `json:"images"`
	Triangles [][3]int `json:"triangles"`
}

// Decode parses a document from JSON.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("project: parse: %w", err)
	}
	return doc, nil
}

// Read loads a document from path. Relative image sources are resolved
// against the document's directory.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("project: read %s: %w", path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return Document{}, fmt.Errorf("project: read %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i, img := range doc.Images {
		doc.Images[i].Src = ResolveSrc(dir, img.Src)
	}
	return doc, nil
}

// ResolveSrc joins a relative file source onto dir. Absolute paths and
// URIs such as data: are returned unchanged.
func ResolveSrc(dir, src string) string {
	if src == "" || filepath.IsAbs(src) || hasScheme(src) {
		return src
	}
	return filepath.Join(dir, src)
}

func hasScheme(src string) bool {
	for i, c := range src {
		switch {
		case c == ':':
			return i > 1
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return false
}

// Write stores doc as indented JSON, creating parent directories.
func Write(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("project: encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("project: create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("project: write %s: %w", path, err)
	}
	return nil
}

// Validate checks that every image has the same point count and that every
// triangle references three distinct existing points.
func (d Document) Validate() error {
	n := -1
	for i, img := range d.Images {
		if n < 0 {
			n = len(img.Points)
			continue
		}
		if len(img.Points) != n {
			return fmt.Errorf("%w: image %d has %d points, image 0 has %d", ErrMismatch, i, len(img.Points), n)
		}
	}
	if n < 0 {
		n = 0
	}
	for k, t := range d.Triangles {
		for _, i := range t {
			if i < 0 || i >= n {
				return fmt.Errorf("%w: triangle %d references point %d of %d", ErrMismatch, k, i, n)
			}
		}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			return fmt.Errorf("%w: triangle %d repeats a vertex", ErrMismatch, k)
		}
	}
	return nil
}
