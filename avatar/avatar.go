// Package avatar turns an uploaded picture into the square PNG the kita theme
// shows as the profile avatar.
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

const (
	// Size is the edge length of the produced avatar in pixels.
	Size = 256
	// MaxUploadSize bounds the accepted upload.
	MaxUploadSize = 5 << 20
	// Path is where the avatar is committed in the blog repository.
	Path = "static/avatar.png"
	// URL is the avatar_url value that points the theme at Path.
	URL = "avatar.png"
)

// Process decodes a PNG, JPEG or GIF image, crops it to a centered square,
// scales it to Size and encodes it as PNG.
func Process(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(io.LimitReader(src, MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side == 0 {
		return nil, errors.New("decode image: empty image")
	}
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
