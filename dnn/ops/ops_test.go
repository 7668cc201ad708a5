// MODUL: ops_test
// ZWECK: Tests fuer die Operator-Ausfuehrung
// INPUT: Handgebaute Layer und Operanden mit bekannten Werten
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, math

package ops

import (
	"math"
	"testing"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

// buildOperands legt Input/Output-Operanden an und fuellt den Input
func buildOperands(t *testing.T, dims [4]int32, data []float32) []native.Operand {
	t.Helper()
	operands := []native.Operand{
		{Name: "in", Kind: native.KindInput, DataType: native.Float32, Dims: dims, NHWC: true},
		{Name: "out", Kind: native.KindOutput, DataType: native.Float32, NHWC: true},
	}
	if err := operands[0].Alloc(); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	copy(operands[0].Data, data)
	return operands
}

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestConv2DValid(t *testing.T) {
	// 1x3x3x1 Input, 2x2 Box-Kernel -> 1x2x2x1 Output mit Fenstersummen
	operands := buildOperands(t, [4]int32{1, 3, 3, 1}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	layer := &native.Layer{
		Type:   native.LayerConv2D,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.Conv2DParams{
			InputNum:   1,
			OutputNum:  1,
			KernelSize: 2,
			Padding:    native.PaddingValid,
			Dilation:   1,
			Kernel:     []float32{1, 1, 1, 1},
		},
	}

	if err := Execute(layer, operands, Options{Conv2DThreads: 2}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := operands[1]
	if out.Dims != [4]int32{1, 2, 2, 1} {
		t.Fatalf("Output-Dims = %v, erwartet [1 2 2 1]", out.Dims)
	}
	want := []float32{12, 16, 24, 28}
	for i, w := range want {
		if !almostEqual(out.Data[i], w) {
			t.Errorf("Data[%d] = %v, erwartet %v", i, out.Data[i], w)
		}
	}
}

func TestConv2DSamePadding(t *testing.T) {
	// 3x3-Kernel mit same-Padding erhaelt die Shape
	operands := buildOperands(t, [4]int32{1, 2, 2, 1}, []float32{1, 2, 3, 4})
	kernel := make([]float32, 9)
	kernel[4] = 2 // nur das Zentrum
	layer := &native.Layer{
		Type:   native.LayerConv2D,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.Conv2DParams{
			InputNum:   1,
			OutputNum:  1,
			KernelSize: 3,
			Padding:    native.PaddingSame,
			Dilation:   1,
			Kernel:     kernel,
		},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := operands[1]
	if out.Dims != [4]int32{1, 2, 2, 1} {
		t.Fatalf("Output-Dims = %v, erwartet [1 2 2 1]", out.Dims)
	}
	want := []float32{2, 4, 6, 8}
	for i, w := range want {
		if !almostEqual(out.Data[i], w) {
			t.Errorf("Data[%d] = %v, erwartet %v", i, out.Data[i], w)
		}
	}
}

func TestConv2DReluAndBias(t *testing.T) {
	operands := buildOperands(t, [4]int32{1, 1, 2, 1}, []float32{-5, 3})
	layer := &native.Layer{
		Type:   native.LayerConv2D,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.Conv2DParams{
			Activation: native.ActivationRelu,
			InputNum:   1,
			OutputNum:  1,
			KernelSize: 1,
			Padding:    native.PaddingValid,
			Dilation:   1,
			HasBias:    true,
			Kernel:     []float32{1},
			Biases:     []float32{1},
		},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// -5+1 = -4 -> relu 0; 3+1 = 4
	out := operands[1]
	if out.Data[0] != 0 || out.Data[1] != 4 {
		t.Errorf("Data = %v, erwartet [0 4]", out.Data)
	}
}

func TestConv2DChannelMismatch(t *testing.T) {
	operands := buildOperands(t, [4]int32{1, 2, 2, 3}, make([]float32, 12))
	layer := &native.Layer{
		Type:   native.LayerConv2D,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.Conv2DParams{
			InputNum:   1, // Input hat aber 3 Kanaele
			OutputNum:  1,
			KernelSize: 1,
			Dilation:   1,
			Kernel:     []float32{1},
		},
	}

	if err := Execute(layer, operands, Options{}); err == nil {
		t.Error("Execute() lieferte keinen Fehler bei Kanal-Diskrepanz")
	}
}

func TestDepthToSpace(t *testing.T) {
	// 1x1x1x4, Block 2 -> 1x2x2x1
	operands := buildOperands(t, [4]int32{1, 1, 1, 4}, []float32{1, 2, 3, 4})
	layer := &native.Layer{
		Type:   native.LayerDepthToSpace,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.DepthToSpaceParams{BlockSize: 2},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := operands[1]
	if out.Dims != [4]int32{1, 2, 2, 1} {
		t.Fatalf("Output-Dims = %v, erwartet [1 2 2 1]", out.Dims)
	}
	want := []float32{1, 2, 3, 4}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("Data[%d] = %v, erwartet %v", i, out.Data[i], w)
		}
	}
}

func TestDepthToSpaceInvalidBlock(t *testing.T) {
	operands := buildOperands(t, [4]int32{1, 1, 1, 3}, []float32{1, 2, 3})
	layer := &native.Layer{
		Type:   native.LayerDepthToSpace,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.DepthToSpaceParams{BlockSize: 2},
	}

	if err := Execute(layer, operands, Options{}); err == nil {
		t.Error("Execute() lieferte keinen Fehler bei unteilbarer Kanalzahl")
	}
}

func TestMaximum(t *testing.T) {
	operands := buildOperands(t, [4]int32{1, 1, 1, 4}, []float32{-2, 0, 0.5, 3})
	layer := &native.Layer{
		Type:   native.LayerMaximum,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.MaximumParams{Val: 0.5},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []float32{0.5, 0.5, 0.5, 3}
	for i, w := range want {
		if operands[1].Data[i] != w {
			t.Errorf("Data[%d] = %v, erwartet %v", i, operands[1].Data[i], w)
		}
	}
}

func TestMathBinaryConstIdentity(t *testing.T) {
	// add 0 als Identitaet
	values := []float32{1.5, -2, 0, 42}
	operands := buildOperands(t, [4]int32{1, 1, 1, 4}, values)
	layer := &native.Layer{
		Type:   native.LayerMathBinary,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.MathBinaryParams{Op: native.MathBinaryAdd, Input1Const: true, Val: 0},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for i, w := range values {
		if operands[1].Data[i] != w {
			t.Errorf("Data[%d] = %v, erwartet %v", i, operands[1].Data[i], w)
		}
	}
}

func TestMathBinaryConstFirst(t *testing.T) {
	// 10 - x mit Konstante als erstem Argument
	operands := buildOperands(t, [4]int32{1, 1, 1, 2}, []float32{4, -6})
	layer := &native.Layer{
		Type:   native.LayerMathBinary,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.MathBinaryParams{Op: native.MathBinarySub, Input0Const: true, Val: 10},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []float32{6, 16}
	for i, w := range want {
		if operands[1].Data[i] != w {
			t.Errorf("Data[%d] = %v, erwartet %v", i, operands[1].Data[i], w)
		}
	}
}

func TestMathBinaryTwoOperands(t *testing.T) {
	operands := []native.Operand{
		{Name: "a", Kind: native.KindInput, DataType: native.Float32, Dims: [4]int32{1, 1, 1, 2}},
		{Name: "b", Kind: native.KindIntermediate, DataType: native.Float32, Dims: [4]int32{1, 1, 1, 2}},
		{Name: "out", Kind: native.KindOutput, DataType: native.Float32},
	}
	for i := 0; i < 2; i++ {
		if err := operands[i].Alloc(); err != nil {
			t.Fatalf("Alloc() error = %v", err)
		}
	}
	copy(operands[0].Data, []float32{3, 8})
	copy(operands[1].Data, []float32{2, 4})

	layer := &native.Layer{
		Type:   native.LayerMathBinary,
		Inputs: []int32{0, 1},
		Output: 2,
		Params: &native.MathBinaryParams{Op: native.MathBinaryMul},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []float32{6, 32}
	for i, w := range want {
		if operands[2].Data[i] != w {
			t.Errorf("Data[%d] = %v, erwartet %v", i, operands[2].Data[i], w)
		}
	}
}

func TestMathUnary(t *testing.T) {
	operands := buildOperands(t, [4]int32{1, 1, 1, 3}, []float32{-1.5, 0, 2.25})
	layer := &native.Layer{
		Type:   native.LayerMathUnary,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.MathUnaryParams{Op: native.MathUnaryAbs},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []float32{1.5, 0, 2.25}
	for i, w := range want {
		if operands[1].Data[i] != w {
			t.Errorf("Data[%d] = %v, erwartet %v", i, operands[1].Data[i], w)
		}
	}
}

func TestDense(t *testing.T) {
	// 1x1x2x2 Input, Kernel [in][out] = [[1,0],[0,2]], Bias [1,-1]
	operands := buildOperands(t, [4]int32{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	layer := &native.Layer{
		Type:   native.LayerDense,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.DenseParams{
			InputNum:  2,
			OutputNum: 2,
			HasBias:   true,
			Kernel:    []float32{1, 0, 0, 2},
			Biases:    []float32{1, -1},
		},
	}

	if err := Execute(layer, operands, Options{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := operands[1]
	if out.Dims != [4]int32{1, 1, 2, 2} {
		t.Fatalf("Output-Dims = %v, erwartet [1 1 2 2]", out.Dims)
	}
	// Pixel 1: [1,2] -> [1*1+1, 2*2-1] = [2,3]; Pixel 2: [3,4] -> [4,7]
	want := []float32{2, 3, 4, 7}
	for i, w := range want {
		if !almostEqual(out.Data[i], w) {
			t.Errorf("Data[%d] = %v, erwartet %v", i, out.Data[i], w)
		}
	}
}

func TestExecuteMissingInputData(t *testing.T) {
	operands := []native.Operand{
		{Name: "in", Kind: native.KindInput, DataType: native.Float32, Dims: [4]int32{1, 1, 1, 1}},
		{Name: "out", Kind: native.KindOutput, DataType: native.Float32},
	}
	layer := &native.Layer{
		Type:   native.LayerMathUnary,
		Inputs: []int32{0},
		Output: 1,
		Params: &native.MathUnaryParams{Op: native.MathUnaryAbs},
	}

	if err := Execute(layer, operands, Options{}); err == nil {
		t.Error("Execute() lieferte keinen Fehler bei fehlendem Input-Puffer")
	}
}
