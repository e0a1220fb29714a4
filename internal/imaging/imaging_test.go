package imaging

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/mrsinham/fundusindex/internal/imaging/imagingtest"
)

func TestDecodeFile_Formats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		file   string
		write  func(path string) error
		format string
		mode   string
	}{
		{"jpeg", "RET002OD.jpg", func(p string) error { return imagingtest.WriteJPEG(p, 40, 30) }, "JPEG", "RGB"},
		{"png", "RET003OD.png", func(p string) error { return imagingtest.WritePNG(p, 40, 30) }, "PNG", "RGB"},
		{"translucent png", "RET006OD.png", func(p string) error { return imagingtest.WriteTranslucentPNG(p, 40, 30) }, "PNG", "RGBA"},
		{"gray png", "RET004OD.png", func(p string) error { return imagingtest.WriteGrayPNG(p, 40, 30) }, "PNG", "L"},
		{"bmp", "RET005OD.bmp", func(p string) error { return imagingtest.WriteBMP(p, 40, 30) }, "BMP", "RGBA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := tt.write(path); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			d, err := DecodeFile(path, 0)
			if err != nil {
				t.Fatalf("DecodeFile failed: %v", err)
			}
			if d.Format != tt.format {
				t.Errorf("Format = %s, want %s", d.Format, tt.format)
			}
			if d.Width() != 40 || d.Height() != 30 {
				t.Errorf("size = %dx%d, want 40x30", d.Width(), d.Height())
			}
			if d.Mode() != tt.mode {
				t.Errorf("Mode = %s, want %s", d.Mode(), tt.mode)
			}

			h, err := DecodeConfigFile(path)
			if err != nil {
				t.Fatalf("DecodeConfigFile failed: %v", err)
			}
			if h.Width != 40 || h.Height != 30 || h.Format != tt.format || h.Mode != tt.mode {
				t.Errorf("header = %+v", h)
			}
		})
	}
}

func TestDecodeFile_DICOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "RET007OS.dcm")
	if err := imagingtest.WriteDICOM(path, 32, 24, "#007"); err != nil {
		t.Fatalf("write dicom fixture: %v", err)
	}

	h, err := DecodeConfigFile(path)
	if err != nil {
		t.Fatalf("DecodeConfigFile failed: %v", err)
	}
	if h.Format != "DICOM" {
		t.Errorf("Format = %s, want DICOM", h.Format)
	}
	if h.Width != 32 || h.Height != 24 {
		t.Errorf("header size = %dx%d, want 32x24", h.Width, h.Height)
	}

	d, err := DecodeFile(path, 0)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if d.Width() != 32 || d.Height() != 24 {
		t.Errorf("decoded size = %dx%d, want 32x24", d.Width(), d.Height())
	}
}

func TestDecodeFile_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "RET002OD.jpg")
	if err := imagingtest.WriteGarbage(path); err != nil {
		t.Fatal(err)
	}

	if _, err := DecodeFile(path, 0); !errors.Is(err, image.ErrFormat) {
		t.Errorf("expected image.ErrFormat, got %v", err)
	}
	if _, err := DecodeConfigFile(path); err == nil {
		t.Error("expected header error for garbage file")
	}
}

func TestDecodeFile_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "RET002OD.png")
	if err := imagingtest.WritePNG(path, 64, 64); err != nil {
		t.Fatal(err)
	}

	_, err := DecodeFile(path, 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestDecodeFile_Missing(t *testing.T) {
	if _, err := DecodeFile(filepath.Join(t.TempDir(), "missing.jpg"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestColorMode(t *testing.T) {
	tests := []struct {
		model color.Model
		want  string
	}{
		{color.GrayModel, "L"},
		{color.Gray16Model, "I;16"},
		{color.YCbCrModel, "RGB"},
		{color.NYCbCrAModel, "RGBA"},
		{color.RGBAModel, "RGBA"},
		{color.NRGBAModel, "RGBA"},
		{color.RGBA64Model, "RGBA"},
		{color.CMYKModel, "CMYK"},
		{color.AlphaModel, "A"},
		{color.Palette{color.Black, color.White}, "P"},
	}
	for _, tt := range tests {
		if got := ColorMode(tt.model); got != tt.want {
			t.Errorf("ColorMode(%T) = %s, want %s", tt.model, got, tt.want)
		}
	}
}

func TestPNGColorTypeMode(t *testing.T) {
	ihdr := func(colorType byte) []byte {
		b := append([]byte("\x89PNG\r\n\x1a\n"), 0, 0, 0, 13)
		b = append(b, "IHDR"...)
		b = append(b, 0, 0, 0, 40, 0, 0, 0, 30, 8, colorType)
		return b
	}

	tests := []struct {
		name string
		hdr  []byte
		want string
	}{
		{"gray", ihdr(0), ""},
		{"truecolor", ihdr(2), "RGB"},
		{"palette", ihdr(3), ""},
		{"gray alpha", ihdr(4), "LA"},
		{"truecolor alpha", ihdr(6), ""},
		{"short", ihdr(2)[:20], ""},
		{"jpeg", append([]byte{0xff, 0xd8, 0xff}, make([]byte, 23)...), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pngColorTypeMode(tt.hdr); got != tt.want {
				t.Errorf("pngColorTypeMode = %q, want %q", got, tt.want)
			}
		})
	}
}
