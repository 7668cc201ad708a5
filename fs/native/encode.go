// encode.go - Schreiben des nativen Model-Formats
//
// Dieses Modul enthaelt:
// - Encode: Serialisiert einen Graphen in das Dateiformat
// - writer: Schreib-Hilfe fuer little-endian Werte
//
// Der Encoder ist das Gegenstueck zu Decode und wird von Tests und
// Authoring-Werkzeugen verwendet.
package native

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/x448/float16"
)

type writer struct {
	w   io.Writer
	err error
}

func (e *writer) u32(v uint32) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *writer) f32(v float32) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *writer) bytes(b []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}

func (e *writer) floats(values []float32, format KernelFormat) {
	if e.err != nil {
		return
	}
	if format == KernelFloat16 {
		raw := make([]uint16, len(values))
		for i, v := range values {
			raw[i] = float16.Fromfloat32(v).Bits()
		}
		e.err = binary.Write(e.w, binary.LittleEndian, raw)
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, values)
}

// Encode serialisiert den Graphen in das native Dateiformat
func Encode(w io.Writer, g *Graph) error {
	e := &writer{w: w}

	e.bytes([]byte(Magic))
	e.u32(g.Major)
	e.u32(g.Minor)

	for i := range g.Layers {
		if err := encodeLayer(e, &g.Layers[i]); err != nil {
			return err
		}
	}

	for i := range g.Operands {
		oprd := &g.Operands[i]
		if len(oprd.Name) == 0 || len(oprd.Name) > MaxOperandName {
			return fmt.Errorf("operand %d: invalid name length %d", i, len(oprd.Name))
		}
		e.u32(uint32(i))
		e.u32(uint32(len(oprd.Name)))
		e.bytes([]byte(oprd.Name))
		e.u32(uint32(oprd.Kind))
		e.u32(uint32(oprd.DataType))
		for _, dim := range oprd.Dims {
			e.u32(uint32(dim))
		}
	}

	e.u32(uint32(len(g.Layers)))
	e.u32(uint32(len(g.Operands)))

	return e.err
}

func encodeLayer(e *writer, layer *Layer) error {
	e.u32(uint32(layer.Type))

	switch params := layer.Params.(type) {
	case *Conv2DParams:
		e.u32(uint32(params.Activation))
		e.u32(uint32(params.InputNum))
		e.u32(uint32(params.OutputNum))
		e.u32(uint32(params.KernelSize))
		e.u32(uint32(params.Padding))
		e.u32(uint32(params.Dilation))
		e.u32(boolU32(params.HasBias))
		e.u32(uint32(params.Format))
		e.floats(params.Kernel, params.Format)
		if params.HasBias {
			e.floats(params.Biases, params.Format)
		}
	case *DepthToSpaceParams:
		e.u32(uint32(params.BlockSize))
	case *MaximumParams:
		e.f32(params.Val)
	case *MathBinaryParams:
		e.u32(uint32(params.Op))
		e.u32(boolU32(params.Input0Const))
		e.u32(boolU32(params.Input1Const))
		e.f32(params.Val)
	case *MathUnaryParams:
		e.u32(uint32(params.Op))
	case *DenseParams:
		e.u32(uint32(params.Activation))
		e.u32(uint32(params.InputNum))
		e.u32(uint32(params.OutputNum))
		e.u32(boolU32(params.HasBias))
		e.u32(uint32(params.Format))
		e.floats(params.Kernel, params.Format)
		if params.HasBias {
			e.floats(params.Biases, params.Format)
		}
	default:
		return fmt.Errorf("%w: cannot encode layer type %d", ErrUnknownLayer, uint32(layer.Type))
	}

	for _, idx := range layer.Inputs {
		e.u32(uint32(idx))
	}
	e.u32(uint32(layer.Output))

	return e.err
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
