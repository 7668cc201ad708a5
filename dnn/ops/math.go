// math.go - Elementweise Mathe-Operatoren
//
// Enthaelt:
// - execMaximum: Klemmen gegen eine Konstante
// - execMathBinary: binaere Operation ueber zwei Operanden oder
//   einen Operanden und eine Konstante
// - execMathUnary: unaere Operation ueber einen Operanden

package ops

import (
	"fmt"
	"math"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

func execMaximum(layer *native.Layer, operands []native.Operand, params *native.MaximumParams) error {
	in, err := input(layer, operands, 0)
	if err != nil {
		return err
	}
	out := &operands[layer.Output]

	out.Dims = in.Dims
	if err := out.Alloc(); err != nil {
		return err
	}

	for i, v := range in.Data {
		out.Data[i] = max(v, params.Val)
	}
	return nil
}

func execMathBinary(layer *native.Layer, operands []native.Operand, params *native.MathBinaryParams) error {
	first, err := input(layer, operands, 0)
	if err != nil {
		return err
	}
	out := &operands[layer.Output]

	apply := func(a, b float32) (float32, error) {
		switch params.Op {
		case native.MathBinarySub:
			return a - b, nil
		case native.MathBinaryAdd:
			return a + b, nil
		case native.MathBinaryMul:
			return a * b, nil
		case native.MathBinaryRealDiv:
			return a / b, nil
		case native.MathBinaryMin:
			return min(a, b), nil
		case native.MathBinaryMax:
			return max(a, b), nil
		default:
			return 0, fmt.Errorf("math_binary: unsupported op %d", params.Op)
		}
	}

	out.Dims = first.Dims
	if err := out.Alloc(); err != nil {
		return err
	}

	switch {
	case params.Input0Const:
		for i, v := range first.Data {
			if out.Data[i], err = apply(params.Val, v); err != nil {
				return err
			}
		}
	case params.Input1Const:
		for i, v := range first.Data {
			if out.Data[i], err = apply(v, params.Val); err != nil {
				return err
			}
		}
	default:
		second, err := input(layer, operands, 1)
		if err != nil {
			return err
		}
		if first.Dims != second.Dims {
			return fmt.Errorf("math_binary: operand shapes %v and %v differ", first.Dims, second.Dims)
		}
		for i, v := range first.Data {
			if out.Data[i], err = apply(v, second.Data[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func execMathUnary(layer *native.Layer, operands []native.Operand, params *native.MathUnaryParams) error {
	in, err := input(layer, operands, 0)
	if err != nil {
		return err
	}
	out := &operands[layer.Output]

	var fn func(float64) float64
	switch params.Op {
	case native.MathUnaryAbs:
		fn = math.Abs
	case native.MathUnarySin:
		fn = math.Sin
	case native.MathUnaryCos:
		fn = math.Cos
	case native.MathUnaryTan:
		fn = math.Tan
	case native.MathUnaryAsin:
		fn = math.Asin
	case native.MathUnaryAcos:
		fn = math.Acos
	case native.MathUnaryAtan:
		fn = math.Atan
	case native.MathUnarySinh:
		fn = math.Sinh
	case native.MathUnaryCosh:
		fn = math.Cosh
	case native.MathUnaryTanh:
		fn = math.Tanh
	case native.MathUnaryCeil:
		fn = math.Ceil
	case native.MathUnaryFloor:
		fn = math.Floor
	case native.MathUnaryRound:
		fn = math.Round
	case native.MathUnaryExp:
		fn = math.Exp
	default:
		return fmt.Errorf("math_unary: unsupported op %d", params.Op)
	}

	out.Dims = in.Dims
	if err := out.Alloc(); err != nil {
		return err
	}
	for i, v := range in.Data {
		out.Data[i] = float32(fn(float64(v)))
	}
	return nil
}
