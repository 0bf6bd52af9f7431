// Package source turns layer source references (file paths and data URIs)
// into decoded RGBA images.
package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/anthonynsimon/bild/clone"
	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

var ErrUnsupported = errors.New("source: unsupported image")

// Resolver resolves a source reference to a decoded image.
type Resolver interface {
	Resolve(ctx context.Context, src string) (*image.RGBA, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, src string) (*image.RGBA, error)

func (f ResolverFunc) Resolve(ctx context.Context, src string) (*image.RGBA, error) {
	return f(ctx, src)
}

// Loader reads file paths and data: URIs.
type Loader struct{}

func (Loader) Resolve(ctx context.Context, src string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := Read(src)
	if err != nil {
		return nil, err
	}
	return Decode(raw, src)
}

// Read returns the encoded bytes behind src.
func Read(src string) ([]byte, error) {
	if strings.HasPrefix(src, "data:") {
		return parseDataURI(src)
	}
	path := strings.TrimPrefix(src, "file://")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}
	return raw, nil
}

// decoders maps sniffed types to their decoder. The tga package registers
// itself with an empty magic string, which image.Decode would match against
// any input, so decoding never goes through the image format registry.
var decoders = map[string]func(io.Reader) (image.Image, error){
	matchers.TypePng.Extension:  png.Decode,
	matchers.TypeJpeg.Extension: jpeg.Decode,
	matchers.TypeGif.Extension:  gif.Decode,
	matchers.TypeBmp.Extension:  bmp.Decode,
	matchers.TypeTiff.Extension: tiff.Decode,
	matchers.TypeWebp.Extension: webp.Decode,
}

// Decode sniffs and decodes raw. TGA has no magic number, so bytes that
// filetype does not recognise are offered to the TGA decoder.
func Decode(raw []byte, name string) (*image.RGBA, error) {
	kind, _ := filetype.Match(raw)
	decode := tga.Decode
	if kind != filetype.Unknown {
		fn, ok := decoders[kind.Extension]
		if !ok {
			return nil, fmt.Errorf("%w: %s is %s", ErrUnsupported, short(name), kind.MIME.Value)
		}
		decode = fn
	}
	img, err := decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupported, short(name), err)
	}
	return clone.AsRGBA(img), nil
}

func parseDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("source: malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			raw, err = base64.RawStdEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, fmt.Errorf("source: data URI payload: %w", err)
		}
		return raw, nil
	}
	raw, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("source: data URI payload: %w", err)
	}
	return []byte(raw), nil
}

func short(name string) string {
	if len(name) > 48 {
		return name[:48] + "..."
	}
	return name
}
