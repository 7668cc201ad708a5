// conv2d.go - Faltung ueber NHWC-Operanden
//
// Enthaelt:
// - execConv2D: zeilen-parallele Faltung mit valid/same Randbehandlung

package ops

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

func execConv2D(layer *native.Layer, operands []native.Operand, params *native.Conv2DParams, opts Options) error {
	in, err := input(layer, operands, 0)
	if err != nil {
		return err
	}
	out := &operands[layer.Output]

	height := in.Dims[1]
	width := in.Dims[2]
	channels := in.Dims[3]
	if channels != params.InputNum {
		return fmt.Errorf("conv2d: input has %d channels, kernel expects %d", channels, params.InputNum)
	}

	kernelSize := params.KernelSize
	dilation := params.Dilation

	outHeight := height
	outWidth := width
	pad := int32(0)
	if params.Padding == native.PaddingValid {
		outHeight = height - (kernelSize-1)*dilation
		outWidth = width - (kernelSize-1)*dilation
		if outHeight < 1 || outWidth < 1 {
			return fmt.Errorf("conv2d: input %dx%d too small for kernel %d dilation %d", height, width, kernelSize, dilation)
		}
	} else {
		pad = (kernelSize - 1) * dilation / 2
	}

	out.Dims = [4]int32{1, outHeight, outWidth, params.OutputNum}
	if err := out.Alloc(); err != nil {
		return err
	}

	threads := opts.Conv2DThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if int32(threads) > outHeight {
		threads = int(outHeight)
	}

	rowsPerThread := (int(outHeight) + threads - 1) / threads

	var g errgroup.Group
	g.SetLimit(threads)
	for start := 0; start < int(outHeight); start += rowsPerThread {
		end := min(start+rowsPerThread, int(outHeight))
		g.Go(func() error {
			convRows(in, out, params, int32(start), int32(end), pad)
			return nil
		})
	}
	return g.Wait()
}

// convRows berechnet die Output-Zeilen [start, end)
func convRows(in, out *native.Operand, params *native.Conv2DParams, start, end, pad int32) {
	height := in.Dims[1]
	width := in.Dims[2]
	channels := in.Dims[3]
	outWidth := out.Dims[2]
	kernelSize := params.KernelSize
	dilation := params.Dilation

	for y := start; y < end; y++ {
		for x := int32(0); x < outWidth; x++ {
			for o := int32(0); o < params.OutputNum; o++ {
				var sum float32
				for ky := int32(0); ky < kernelSize; ky++ {
					srcY := y + ky*dilation - pad
					if srcY < 0 || srcY >= height {
						continue
					}
					for kx := int32(0); kx < kernelSize; kx++ {
						srcX := x + kx*dilation - pad
						if srcX < 0 || srcX >= width {
							continue
						}
						kernelBase := ((o*kernelSize+ky)*kernelSize + kx) * channels
						srcBase := (srcY*width + srcX) * channels
						for ci := int32(0); ci < channels; ci++ {
							sum += params.Kernel[kernelBase+ci] * in.Data[srcBase+ci]
						}
					}
				}
				if params.HasBias {
					sum += params.Biases[o]
				}
				out.Data[(y*outWidth+x)*params.OutputNum+o] = activate(sum, params.Activation)
			}
		}
	}
}
