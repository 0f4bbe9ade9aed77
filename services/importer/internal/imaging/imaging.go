// Package imaging turns downloaded cover bytes into upload-ready artifacts.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/provider"
)

// JPEGQuality is the fixed re-encode quality for canonical covers.
const JPEGQuality = 95

// MaxPixels bounds the decoded surface. Larger images are passed through.
const MaxPixels = 40_000_000

// Fallback reasons recorded on non-canonical artifacts.
const (
	FallbackDecode  = "decode_failed"
	FallbackTooBig  = "too_large"
	FallbackEncode  = "encode_failed"
	FallbackNoBytes = "empty"
)

// Canonicalize builds the artifact for data fetched from sourceURL.
//
// Bangumi bytes are kept as they are. Everything else is decoded, flattened
// onto white and re-encoded as JPEG at the original dimensions. A failure on
// that path never fails the import: the original bytes are kept and the
// reason is set on Artifact.Fallback.
func Canonicalize(src provider.Source, sourceURL string, data []byte, now time.Time) *anime.Artifact {
	a := &anime.Artifact{SourceURL: sourceURL}

	if src.Kind == provider.Bangumi {
		passthrough(a, src, data, now)
		if img, err := decode(data); err == nil {
			a.BlurHash, _ = BlurHash(img)
		}
		return a
	}

	if len(data) == 0 {
		passthrough(a, src, data, now)
		a.Fallback = FallbackNoBytes
		return a
	}

	img, err := decode(data)
	if err != nil {
		passthrough(a, src, data, now)
		if err == errTooLarge {
			a.Fallback = FallbackTooBig
		} else {
			a.Fallback = FallbackDecode
		}
		return a
	}

	out, err := encodeJPEG(img)
	if err != nil {
		passthrough(a, src, data, now)
		a.Fallback = FallbackEncode
		return a
	}

	b := img.Bounds()
	a.Data = out
	a.MIMEType = "image/jpeg"
	a.Filename = Filename(src, now, ".jpg")
	a.Width, a.Height = b.Dx(), b.Dy()
	a.Canonical = true
	a.BlurHash, _ = BlurHash(img)
	return a
}

// Filename returns cover_<provider>_<id>_<unix-millis><ext>.
func Filename(src provider.Source, now time.Time, ext string) string {
	return fmt.Sprintf("cover_%s_%d_%d%s", src.Kind, src.ID, now.UnixMilli(), ext)
}

// passthrough fills a with the untouched bytes and their sniffed type.
func passthrough(a *anime.Artifact, src provider.Source, data []byte, now time.Time) {
	mt := mimetype.Detect(data)
	ext := mt.Extension()
	if ext == "" {
		ext = ".bin"
	}
	a.Data = data
	a.MIMEType = mt.String()
	a.Filename = Filename(src, now, ext)
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		a.Width, a.Height = cfg.Width, cfg.Height
	}
}

var errTooLarge = fmt.Errorf("image exceeds %d pixels", MaxPixels)

func decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, errTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// encodeJPEG flattens img onto an opaque white surface, since JPEG has no
// alpha channel, and encodes it.
func encodeJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
