// Package covers validates uploaded cover images and computes their
// BlurHash placeholders.
package covers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"

	"github.com/bbrks/go-blurhash"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"paginasamarelas/internal/util"
)

// DefaultMaxBytes is the default upload limit (5 MiB).
const DefaultMaxBytes int64 = 5 << 20

// blurHashSize bounds the thumbnail the hash is computed from.
const blurHashSize = 64

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrEmpty           = errors.New("empty file")
)

// allowed maps accepted MIME types to the extension files are stored with.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Cover is a validated upload ready to be stored.
type Cover struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// Key returns a random storage key: 16 hex characters plus the extension.
func (c Cover) Key() string {
	return util.RandomHex(8) + c.Extension
}

// Read consumes r up to maxBytes, sniffs its type from content (never from
// the client-supplied name or header) and checks it decodes as an image.
func Read(r io.Reader, maxBytes int64) (Cover, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Cover{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return Cover{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return Cover{}, ErrTooLarge
	}
	mime := mimetype.Detect(data)
	var contentType, ext string
	for m := mime; m != nil; m = m.Parent() {
		if e, ok := allowed[m.String()]; ok {
			contentType, ext = m.String(), e
			break
		}
	}
	if ext == "" {
		return Cover{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mime.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Cover{}, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return Cover{
		Data:        data,
		ContentType: contentType,
		Extension:   ext,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// BlurHash decodes the cover and encodes a 4x3 component BlurHash from a
// small thumbnail.
func (c Cover) BlurHash() (string, error) {
	img, _, err := image.Decode(bytes.NewReader(c.Data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	hash, err := blurhash.Encode(4, 3, thumbnail(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= blurHashSize && h <= blurHashSize {
		return img
	}
	dw, dh := blurHashSize, blurHashSize
	if w > h {
		dh = max(1, h*blurHashSize/w)
	} else {
		dw = max(1, w*blurHashSize/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
