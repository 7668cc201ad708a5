// Package dnn - Inferenz-Engine ueber dem nativen Model-Format
//
// frame.go enthaelt:
// - Frame: gepacktes Bild im NHWC-Layout (uint8)
// - NewFrame: legt einen Frame mit Puffer an
// - FrameFromImage/Image: Konvertierung von und zu image.Image
package dnn

import (
	"fmt"
	"image"
	"image/color"
)

// Frame ist ein gepacktes Bild, zeilen-major, Kanaele verschraenkt.
// Channels 1 (Grau) und 3 (RGB) werden von den Standard-Konvertern
// unterstuetzt.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Data     []uint8
}

// NewFrame legt einen Frame mit passendem Puffer an
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]uint8, width*height*channels),
	}
}

// FrameFromImage packt ein Bild in einen Frame mit der Kanalzahl um
func FrameFromImage(img image.Image, channels int) (*Frame, error) {
	bounds := img.Bounds()
	frame := NewFrame(bounds.Dx(), bounds.Dy(), channels)

	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			offset := (y*frame.Width + x) * channels
			switch channels {
			case 1:
				frame.Data[offset] = color.GrayModel.Convert(c).(color.Gray).Y
			case 3:
				r, g, b, _ := c.RGBA()
				frame.Data[offset] = uint8(r >> 8)
				frame.Data[offset+1] = uint8(g >> 8)
				frame.Data[offset+2] = uint8(b >> 8)
			default:
				return nil, fmt.Errorf("dnn: unsupported channel count %d", channels)
			}
		}
	}
	return frame, nil
}

// Image gibt den Frame als image.Image zurueck
func (f *Frame) Image() (image.Image, error) {
	switch f.Channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+f.Width], f.Data[y*f.Width:(y+1)*f.Width])
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				src := (y*f.Width + x) * 3
				dst := y*img.Stride + x*4
				img.Pix[dst] = f.Data[src]
				img.Pix[dst+1] = f.Data[src+1]
				img.Pix[dst+2] = f.Data[src+2]
				img.Pix[dst+3] = 255
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("dnn: unsupported channel count %d", f.Channels)
	}
}
