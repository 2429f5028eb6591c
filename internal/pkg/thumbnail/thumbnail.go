// Package thumbnail derives JPEG thumbnails and previews from uploaded content.
// Derive never fails: anything it cannot render yields a flat placeholder.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultThumbnailSize = 320
	DefaultPreviewSize   = 1280
	DefaultTimeout       = 10 * time.Second

	// PlaceholderSize is the edge of the square placeholder image.
	PlaceholderSize = 320
	jpegQuality     = 80
	maxPixels       = 100_000_000
)

// PlaceholderColor is #E5E7EB.
var PlaceholderColor = color.RGBA{R: 0xE5, G: 0xE7, B: 0xEB, A: 0xFF}

const (
	ReasonUnsupported = "unsupported media type"
	ReasonDecode      = "decode failed"
	ReasonTooLarge    = "image dimensions too large"
	ReasonTimeout     = "derivation timed out"
	ReasonPanic       = "derivation panicked"
	ReasonEncode      = "encode failed"
	ReasonEmpty       = "empty content"
)

// Derivation is the outcome of Derive. When Degraded is set Thumbnail holds
// the placeholder, Preview is nil and Width/Height are zero.
type Derivation struct {
	Thumbnail []byte
	Preview   []byte
	Width     int
	Height    int
	Degraded  bool
	Reason    string
}

type Deriver struct {
	thumbSize   int
	previewSize int
	timeout     time.Duration
	log         *zap.Logger
	renderFn    func(ctx context.Context, content []byte, mimeType string) (Derivation, error)
}

type Option func(*Deriver)

func WithThumbnailSize(px int) Option {
	return func(d *Deriver) {
		if px > 0 {
			d.thumbSize = px
		}
	}
}

func WithPreviewSize(px int) Option {
	return func(d *Deriver) {
		if px > 0 {
			d.previewSize = px
		}
	}
}

func WithTimeout(t time.Duration) Option {
	return func(d *Deriver) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(d *Deriver) { d.log = log }
}

func New(opts ...Option) *Deriver {
	d := &Deriver{
		thumbSize:   DefaultThumbnailSize,
		previewSize: DefaultPreviewSize,
		timeout:     DefaultTimeout,
		log:         zap.NewNop(),
	}
	d.renderFn = d.render
	for _, o := range opts {
		o(d)
	}
	return d
}

type degradedError struct{ reason string }

func (e degradedError) Error() string { return e.reason }

func degrade(reason string, err error) error {
	if err == nil {
		return degradedError{reason: reason}
	}
	return fmt.Errorf("%w: %v", degradedError{reason: reason}, err)
}

// Derive renders a thumbnail (and a preview when the source is larger than the
// thumbnail box) for image content. It runs under the configured timeout.
func (d *Deriver) Derive(ctx context.Context, content []byte, mimeType, filename string) Derivation {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		der Derivation
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: degrade(ReasonPanic, fmt.Errorf("%v", r))}
			}
		}()
		der, err := d.renderFn(ctx, content, mimeType)
		done <- result{der: der, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: degrade(ReasonTimeout, ctx.Err())}
	}

	if res.err == nil {
		return res.der
	}

	reason := ReasonDecode
	var de degradedError
	if errors.As(res.err, &de) {
		reason = de.reason
	}
	d.log.Debug("thumbnail degraded",
		zap.String("filename", filename),
		zap.String("mime", mimeType),
		zap.String("reason", reason),
		zap.Error(res.err))

	return Derivation{
		Thumbnail: Placeholder(),
		Degraded:  true,
		Reason:    reason,
	}
}

// render checks ctx between the expensive stages so a timed-out derivation
// stops burning CPU once Derive has given up on it.
func (d *Deriver) render(ctx context.Context, content []byte, mimeType string) (Derivation, error) {
	if len(content) == 0 {
		return Derivation{}, degrade(ReasonEmpty, nil)
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return Derivation{}, degrade(ReasonUnsupported, nil)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return Derivation{}, degrade(ReasonDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return Derivation{}, degrade(ReasonTooLarge, nil)
	}

	if err := ctx.Err(); err != nil {
		return Derivation{}, degrade(ReasonTimeout, err)
	}
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return Derivation{}, degrade(ReasonDecode, err)
	}
	src = flatten(src)

	if err := ctx.Err(); err != nil {
		return Derivation{}, degrade(ReasonTimeout, err)
	}

	thumb, err := encode(resize.Thumbnail(uint(d.thumbSize), uint(d.thumbSize), src, resize.Lanczos3))
	if err != nil {
		return Derivation{}, degrade(ReasonEncode, err)
	}

	out := Derivation{
		Thumbnail: thumb,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}
	if cfg.Width > d.thumbSize || cfg.Height > d.thumbSize {
		if err := ctx.Err(); err != nil {
			return Derivation{}, degrade(ReasonTimeout, err)
		}
		preview, err := encode(resize.Thumbnail(uint(d.previewSize), uint(d.previewSize), src, resize.Lanczos3))
		if err != nil {
			return Derivation{}, degrade(ReasonEncode, err)
		}
		out.Preview = preview
	}
	return out, nil
}

// flatten composites images with an alpha channel onto white so JPEG output
// does not turn transparent areas black.
func flatten(src image.Image) image.Image {
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// Placeholder returns the fixed flat-fill JPEG used for degraded derivations.
// The same bytes are returned on every call; callers must not modify them.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, PlaceholderSize, PlaceholderSize))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: PlaceholderColor}, image.Point{}, draw.Src)
		b, err := encode(img)
		if err != nil {
			panic(fmt.Sprintf("encode placeholder: %v", err))
		}
		placeholderBytes = b
	})
	return placeholderBytes
}
