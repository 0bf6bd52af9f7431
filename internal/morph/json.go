package morph

import (
	"context"
	"encoding/json"
	"image"

	"morpher/internal/layer"
	"morpher/internal/project"
	"morpher/internal/source"
)

// Document snapshots the engine: each layer's source, placement and points
// in its own pixel space, plus the shared triangle list.
func (e *Engine) Document() project.Document {
	doc := project.Document{
		Images:    make([]project.Image, len(e.layers)),
		Triangles: make([][3]int, len(e.triangles)),
	}
	for k, l := range e.layers {
		doc.Images[k] = project.Image{Src: l.Src, X: l.X, Y: l.Y, Points: l.Mesh().Points()}
	}
	for k, t := range e.triangles {
		doc.Triangles[k] = [3]int(t)
	}
	return doc
}

func (e *Engine) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Document())
}

// FromJSON builds an engine from the document format. See FromDocument.
func FromJSON(ctx context.Context, data []byte, res source.Resolver, opts Options) (*Engine, error) {
	doc, err := project.Decode(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(ctx, doc, res, opts)
}

// FromDocument builds an engine from doc. Every layer starts decoding its
// source through res in the background; call WaitLoaded before the first
// frame that needs pixels. A nil res leaves layers unloaded.
func FromDocument(ctx context.Context, doc project.Document, res source.Resolver, opts Options) (*Engine, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	e := New(opts)
	for _, img := range doc.Images {
		l := layer.New(img.Src)
		l.X, l.Y = img.X, img.Y
		l.Silent(func() {
			for _, p := range img.Points {
				l.AddPoint(p)
			}
			for _, t := range doc.Triangles {
				l.AddTriangle(t[0], t[1], t[2])
			}
		})
		if res != nil {
			src := img.Src
			l.LoadAsync(ctx, func(ctx context.Context) (image.Image, error) {
				return res.Resolve(ctx, src)
			})
		}
		e.AddImage(l)
	}
	return e, nil
}
