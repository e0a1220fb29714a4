// Package imaging decodes fundus photographs and reports their header information.
//
// JPEG and PNG come from the standard library registry; BMP, TIFF and WebP are
// registered through golang.org/x/image; DICOM ophthalmic photography files are
// decoded with github.com/suyashkumar/dicom.
package imaging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrTooLarge is returned when a file exceeds the configured decode limit.
var ErrTooLarge = errors.New("image too large")

// Decoded is a decoded image together with the container format it was read from.
type Decoded struct {
	Image  image.Image
	Format string
	// mode overrides the color model mapping when the file header is more precise.
	mode string
}

// Width returns the decoded image width in pixels.
func (d Decoded) Width() int { return d.Image.Bounds().Dx() }

// Height returns the decoded image height in pixels.
func (d Decoded) Height() int { return d.Image.Bounds().Dy() }

// Mode returns the color mode of the decoded image.
func (d Decoded) Mode() string {
	if d.mode != "" {
		return d.mode
	}
	return ColorMode(d.Image.ColorModel())
}

// Header describes an image without decoding its pixels.
type Header struct {
	Width  int
	Height int
	Mode   string
	Format string
}

// Decode reads a full image from r.
func Decode(r io.Reader) (Decoded, error) {
	br := bufio.NewReader(r)
	mode := pngMode(br)
	img, format, err := image.Decode(br)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode image: %w", err)
	}
	return Decoded{Image: img, Format: strings.ToUpper(format), mode: mode}, nil
}

// DecodeConfig reads only the image header from r.
func DecodeConfig(r io.Reader) (Header, error) {
	br := bufio.NewReader(r)
	mode := pngMode(br)
	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		return Header{}, fmt.Errorf("decode image header: %w", err)
	}
	if mode == "" {
		mode = ColorMode(cfg.ColorModel)
	}
	return Header{
		Width:  cfg.Width,
		Height: cfg.Height,
		Mode:   mode,
		Format: strings.ToUpper(format),
	}, nil
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// pngIHDRSize covers the signature, the IHDR chunk header and the fields up to the color type.
const pngIHDRSize = 26

// pngMode peeks at a PNG IHDR and names the modes the Go decoder widens:
// truecolor without alpha decodes to RGBA and gray with alpha to NRGBA.
// It returns "" for any other input, leaving br unread.
func pngMode(br *bufio.Reader) string {
	hdr, err := br.Peek(pngIHDRSize)
	if err != nil {
		return ""
	}
	return pngColorTypeMode(hdr)
}

func pngColorTypeMode(hdr []byte) string {
	if len(hdr) < pngIHDRSize || !bytes.Equal(hdr[:8], pngSignature) || string(hdr[12:16]) != "IHDR" {
		return ""
	}
	switch hdr[25] {
	case 2:
		return "RGB"
	case 4:
		return "LA"
	default:
		return ""
	}
}

// DecodeFile decodes the image at path. A positive maxBytes refuses larger files with ErrTooLarge.
func DecodeFile(path string, maxBytes int64) (Decoded, error) {
	f, err := openChecked(path, maxBytes)
	if err != nil {
		return Decoded{}, err
	}
	defer func() { _ = f.Close() }()

	d, err := Decode(f)
	if err != nil {
		return Decoded{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// DecodeConfigFile reads the header of the image at path.
func DecodeConfigFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = f.Close() }()

	h, err := DecodeConfig(f)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func openChecked(path string, maxBytes int64) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		return f, nil
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.Size() > maxBytes {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w: %d bytes (limit %d)", path, ErrTooLarge, info.Size(), maxBytes)
	}
	return f, nil
}

// ColorMode maps a Go color model to the short mode names used by imaging tools
// ("L", "RGB", "RGBA", "P", ...).
func ColorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.YCbCrModel:
		return "RGB"
	case color.NYCbCrAModel, color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return "RGBA"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "A"
	default:
		return "RGB"
	}
}
