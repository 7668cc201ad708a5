// dense.go - Voll verbundener Layer ueber die Kanal-Dimension
//
// Enthaelt:
// - execDense: Matrix-Multiplikation (H*W x Cin) * (Cin x Cout) via BLAS

package ops

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

func execDense(layer *native.Layer, operands []native.Operand, params *native.DenseParams) error {
	in, err := input(layer, operands, 0)
	if err != nil {
		return err
	}
	out := &operands[layer.Output]

	height := in.Dims[1]
	width := in.Dims[2]
	channels := in.Dims[3]
	if channels != params.InputNum {
		return fmt.Errorf("dense: input has %d channels, kernel expects %d", channels, params.InputNum)
	}

	out.Dims = [4]int32{1, height, width, params.OutputNum}
	if err := out.Alloc(); err != nil {
		return err
	}

	rows := int(height * width)
	a := blas32.General{Rows: rows, Cols: int(channels), Stride: int(channels), Data: in.Data}
	b := blas32.General{Rows: int(channels), Cols: int(params.OutputNum), Stride: int(params.OutputNum), Data: params.Kernel}
	c := blas32.General{Rows: rows, Cols: int(params.OutputNum), Stride: int(params.OutputNum), Data: out.Data}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0, c)

	for i := range out.Data {
		v := out.Data[i]
		if params.HasBias {
			v += params.Biases[i%int(params.OutputNum)]
		}
		out.Data[i] = activate(v, params.Activation)
	}
	return nil
}
