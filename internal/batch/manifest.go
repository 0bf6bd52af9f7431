package batch

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestEntry represents one frame in the output manifest.
type ManifestEntry struct {
	Frame   int       `json:"frame"`
	Image   string    `json:"image"`
	Weights []float64 `json:"weights"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
}

// Manifest lists the rendered frames of a sweep in order.
type Manifest struct {
	Sources []string        `json:"sources"`
	Frames  []ManifestEntry `json:"frames"`
}

// WriteManifest writes the successful frames of results to path.
func WriteManifest(path string, sources []string, results []Result) error {
	m := Manifest{Sources: sources, Frames: make([]ManifestEntry, 0, len(results))}
	for _, r := range results {
		if !r.Success {
			continue
		}
		m.Frames = append(m.Frames, ManifestEntry{
			Frame:   r.Frame,
			Image:   r.File,
			Weights: r.Weights,
			Width:   r.Width,
			Height:  r.Height,
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("batch: write %s: %w", path, err)
	}
	return nil
}
