package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// dicomMagic matches the 128 byte preamble followed by "DICM".
var dicomMagic = strings.Repeat("?", 128) + "DICM"

func init() {
	image.RegisterFormat("dicom", dicomMagic, decodeDICOM, decodeDICOMConfig)
}

// decodeDICOM returns the first frame of the pixel data.
func decodeDICOM(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}

	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("find pixel data: %w", err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, errors.New("pixel data has unexpected value type")
	}
	if len(info.Frames) == 0 {
		return nil, errors.New("pixel data has no frames")
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("render frame: %w", err)
	}
	return img, nil
}

// decodeDICOMConfig reads the image geometry, skipping pixel data.
func decodeDICOMConfig(r io.Reader) (image.Config, error) {
	ds, err := parseDICOMTolerant(r)
	if err != nil {
		return image.Config{}, err
	}

	rows := firstInt(ds, tag.Rows)
	cols := firstInt(ds, tag.Columns)
	if rows <= 0 || cols <= 0 {
		return image.Config{}, errors.New("dicom header has no image geometry")
	}

	model := color.Model(color.Gray16Model)
	if firstInt(ds, tag.SamplesPerPixel) == 3 {
		model = color.RGBAModel
	}
	return image.Config{ColorModel: model, Width: cols, Height: rows}, nil
}

// parseDICOMTolerant parses a DICOM stream element-by-element, keeping every
// element read before the first error. Pixel data is skipped.
func parseDICOMTolerant(r io.Reader) (dicom.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return dicom.Dataset{}, err
	}

	p, err := dicom.NewParser(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("parse dicom header: %w", err)
	}

	var elements []*dicom.Element
	for {
		elem, err := p.Next()
		if err != nil {
			break
		}
		elements = append(elements, elem)
	}

	if len(elements) == 0 {
		return dicom.Dataset{}, errors.New("no dicom elements parsed")
	}
	return dicom.Dataset{Elements: elements}, nil
}

func firstInt(ds dicom.Dataset, t tag.Tag) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return 0
	}
	values, ok := elem.Value.GetValue().([]int)
	if !ok || len(values) == 0 {
		return 0
	}
	return values[0]
}
