package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/anime-import/services/importer/internal/provider"
)

var now = time.UnixMilli(1700000000123)

// pngWithAlpha is w x h, transparent on the left half and opaque red on the right.
func pngWithAlpha(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCanonicalize_ReencodesAsJPEG(t *testing.T) {
	src := provider.Source{Kind: provider.AniList, ID: 21}
	data := pngWithAlpha(t, 120, 80)

	a := Canonicalize(src, "https://s4.anilist.co/x.png", data, now)
	require.True(t, a.Canonical)
	assert.Empty(t, a.Fallback)
	assert.Equal(t, "image/jpeg", a.MIMEType)
	assert.Equal(t, "cover_anilist_21_1700000000123.jpg", a.Filename)
	assert.Equal(t, "https://s4.anilist.co/x.png", a.SourceURL)
	assert.Equal(t, 120, a.Width)
	assert.Equal(t, 80, a.Height)
	assert.NotEmpty(t, a.BlurHash)

	img, err := jpeg.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())

	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240), "transparent pixels flatten onto white")
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestCanonicalize_BangumiPassthrough(t *testing.T) {
	src := provider.Source{Kind: provider.Bangumi, ID: 253}
	data := pngWithAlpha(t, 10, 10)

	a := Canonicalize(src, "https://lain.bgm.tv/pic/cover/l/x.png", data, now)
	assert.False(t, a.Canonical)
	assert.Empty(t, a.Fallback)
	assert.Equal(t, data, a.Data)
	assert.Equal(t, "image/png", a.MIMEType)
	assert.Equal(t, "cover_bangumi_253_1700000000123.png", a.Filename)
	assert.Equal(t, 10, a.Width)
}

func TestCanonicalize_DecodeFailureFallsBack(t *testing.T) {
	src := provider.Source{Kind: provider.MyAnimeList, ID: 1}
	data := []byte("<html>not an image</html>")

	a := Canonicalize(src, "https://cdn.myanimelist.net/x.jpg", data, now)
	assert.False(t, a.Canonical)
	assert.Equal(t, FallbackDecode, a.Fallback)
	assert.Equal(t, data, a.Data)
	assert.Equal(t, "https://cdn.myanimelist.net/x.jpg", a.SourceURL)
	assert.Contains(t, a.MIMEType, "text/html")
}

func TestCanonicalize_Empty(t *testing.T) {
	a := Canonicalize(provider.Source{Kind: provider.AniList, ID: 1}, "u", nil, now)
	assert.False(t, a.Canonical)
	assert.Equal(t, FallbackNoBytes, a.Fallback)
}

func TestThumbnail_KeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 320))
	th := thumbnail(img)
	assert.Equal(t, image.Rect(0, 0, 64, 32), th.Bounds())

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, small, thumbnail(small).(*image.RGBA))
}
