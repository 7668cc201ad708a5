// proc.go - Ein- und Ausgabe-Konvertierung zwischen Frame und Tensor
//
// Enthaelt:
// - TensorData: Sicht auf den Puffer eines Operanden
// - InputProc/OutputProc: Hooks fuer eigene Konvertierung
// - defaultInputProc/defaultOutputProc: uint8 <-> float32 mit Skalierung
package dnn

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

// TensorData ist die Sicht eines Hooks auf einen Operanden-Puffer.
// Der Puffer gehoert der Engine, Hooks duerfen ihn nur befuellen
// bzw. auslesen.
type TensorData struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// InputProc befuellt den Eingangs-Tensor aus einem Frame
type InputProc func(frame *Frame, tensor *TensorData) error

// OutputProc uebertraegt den Ausgangs-Tensor in einen Frame
type OutputProc func(frame *Frame, tensor *TensorData) error

func tensorOf(oprd *native.Operand) *TensorData {
	return &TensorData{
		Height:   int(oprd.Dims[1]),
		Width:    int(oprd.Dims[2]),
		Channels: int(oprd.Dims[3]),
		Data:     oprd.Data,
	}
}

// defaultInputProc normalisiert uint8-Werte auf [0,1]
func defaultInputProc(frame *Frame, tensor *TensorData) error {
	if frame.Channels != tensor.Channels {
		return fmt.Errorf("dnn: frame has %d channels, model expects %d", frame.Channels, tensor.Channels)
	}
	if frame.Width != tensor.Width || frame.Height != tensor.Height {
		return fmt.Errorf("dnn: frame is %dx%d, tensor is %dx%d", frame.Width, frame.Height, tensor.Width, tensor.Height)
	}
	for i, v := range frame.Data {
		tensor.Data[i] = float32(v) / 255
	}
	return nil
}

// defaultOutputProc denormalisiert auf uint8 und skaliert bei
// abweichender Groesse bilinear auf den Zielframe
func defaultOutputProc(frame *Frame, tensor *TensorData) error {
	if frame.Width == 0 || frame.Height == 0 {
		frame.Width = tensor.Width
		frame.Height = tensor.Height
		frame.Channels = tensor.Channels
		frame.Data = make([]uint8, frame.Width*frame.Height*frame.Channels)
	}
	if frame.Channels != tensor.Channels {
		return fmt.Errorf("dnn: frame has %d channels, tensor has %d", frame.Channels, tensor.Channels)
	}

	if frame.Width == tensor.Width && frame.Height == tensor.Height {
		for i, v := range tensor.Data {
			frame.Data[i] = clampByte(v)
		}
		return nil
	}

	// Groessen weichen ab: ueber ein Zwischenbild skalieren
	src := NewFrame(tensor.Width, tensor.Height, tensor.Channels)
	for i, v := range tensor.Data {
		src.Data[i] = clampByte(v)
	}
	srcImg, err := src.Image()
	if err != nil {
		return err
	}
	dstImg := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	draw.BiLinear.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)

	scaled, err := FrameFromImage(dstImg, frame.Channels)
	if err != nil {
		return err
	}
	copy(frame.Data, scaled.Data)
	return nil
}

func clampByte(v float32) uint8 {
	scaled := math.Round(float64(v) * 255)
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return uint8(scaled)
}
