// Package imagingtest writes small synthetic fundus images for tests.
package imagingtest

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/image/bmp"
)

// Ophthalmic Photography 8 Bit Image Storage
const ophthalmicPhotography8BitSOPClassUID = "1.2.840.10008.5.1.4.1.1.77.1.5.1"

// Disc returns a w x h RGBA image with a bright disc on a dark red background.
func Disc(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	cx, cy := w/2, h/2
	r := min(w, h) / 4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.RGBA{250, 220, 160, 255})
			} else {
				img.Set(x, y, color.RGBA{120, 30, 20, 255})
			}
		}
	}
	return img
}

// WriteJPEG encodes a w x h image as JPEG at path, creating parent directories.
func WriteJPEG(path string, w, h int) error {
	return writeWith(path, func(f *os.File) error {
		return jpeg.Encode(f, Disc(w, h), &jpeg.Options{Quality: 80})
	})
}

// WritePNG encodes a w x h image as PNG at path.
func WritePNG(path string, w, h int) error {
	return writeWith(path, func(f *os.File) error {
		return png.Encode(f, Disc(w, h))
	})
}

// WriteTranslucentPNG encodes a w x h PNG whose background is half transparent.
func WriteTranslucentPNG(path string, w, h int) error {
	src := Disc(w, h)
	img := image.NewNRGBA(src.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(x, y)
			if x < w/4 {
				c.A = 128
			}
			img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	return writeWith(path, func(f *os.File) error {
		return png.Encode(f, img)
	})
}

// WriteGrayPNG encodes a w x h 8-bit grayscale PNG at path.
func WriteGrayPNG(path string, w, h int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	return writeWith(path, func(f *os.File) error {
		return png.Encode(f, img)
	})
}

// WriteBMP encodes a w x h image as BMP at path.
func WriteBMP(path string, w, h int) error {
	return writeWith(path, func(f *os.File) error {
		return bmp.Encode(f, Disc(w, h))
	})
}

// WriteGarbage writes bytes that no registered decoder accepts.
func WriteGarbage(path string) error {
	return writeWith(path, func(f *os.File) error {
		_, err := f.WriteString("this is not an image")
		return err
	})
}

// WriteDICOM writes a single-frame 8-bit monochrome ophthalmic photograph.
func WriteDICOM(path string, w, h int, patientID string) error {
	nativeFrame := frame.NewNativeFrame[uint8](8, h, w, w*h, 1)
	for i := range nativeFrame.RawData {
		nativeFrame.RawData[i] = uint8(i % 256)
	}

	elements := []*dicom.Element{}
	add := func(t tag.Tag, value any) error {
		elem, err := dicom.NewElement(t, value)
		if err != nil {
			return fmt.Errorf("create element %v: %w", t, err)
		}
		elements = append(elements, elem)
		return nil
	}

	values := []struct {
		tag   tag.Tag
		value any
	}{
		{tag.MediaStorageSOPClassUID, []string{ophthalmicPhotography8BitSOPClassUID}},
		{tag.MediaStorageSOPInstanceUID, []string{"1.2.826.0.1.3680043.8.498.77.1"}},
		{tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}},
		{tag.SOPClassUID, []string{ophthalmicPhotography8BitSOPClassUID}},
		{tag.SOPInstanceUID, []string{"1.2.826.0.1.3680043.8.498.77.1"}},
		{tag.Modality, []string{"OP"}},
		{tag.PatientID, []string{patientID}},
		{tag.SamplesPerPixel, []int{1}},
		{tag.PhotometricInterpretation, []string{"MONOCHROME2"}},
		{tag.Rows, []int{h}},
		{tag.Columns, []int{w}},
		{tag.BitsAllocated, []int{8}},
		{tag.BitsStored, []int{8}},
		{tag.HighBit, []int{7}},
		{tag.PixelRepresentation, []int{0}},
		{tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
		}},
	}
	for _, v := range values {
		if err := add(v.tag, v.value); err != nil {
			return err
		}
	}

	return writeWith(path, func(f *os.File) error {
		return dicom.Write(f, dicom.Dataset{Elements: elements})
	})
}

func writeWith(path string, encode func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
