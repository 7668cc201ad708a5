// native.go - Decode des nativen Model-Formats
//
// Dieses Modul enthaelt:
// - Graph: unveraenderliche Topologie (Layer-Liste + Operanden)
// - Decode: Laedt einen Graphen aus einem ReadSeeker
// - cursor: Lese-Hilfe mit Byte-Buchfuehrung
// - Sentinel-Fehler der Lade-Taxonomie
//
// Dateiaufbau (alle Integer little-endian, Strings laengen-praefixiert):
//
//	MAGIC(15) | major(u32) | minor(u32)
//	layer_record*   (layer_count Eintraege, Reihenfolge = Ausfuehrung)
//	operand_record* (operand_count Eintraege, jeder traegt seinen Ziel-Index)
//	layer_count(u32) | operand_count(u32)   <- letzte 8 Bytes
//
// Die Summe aller gelesenen Bytes muss exakt der Dateigroesse entsprechen;
// das ist die einzige Integritaetspruefung des Formats.
package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/x448/float16"
)

// Magic steht am Anfang jeder Model-Datei (ohne Null-Terminator)
const Magic = "FFMPEGDNNNATIVE"

// MajorVersion ist die erwartete Major-Version des Formats
const MajorVersion = 1

// Fehler der Lade-Taxonomie. Jeder Fehler ist terminal fuer den
// Ladeversuch; es gibt kein partielles Modell.
var (
	ErrBadMagic        = errors.New("native: bad magic")
	ErrVersionMismatch = errors.New("native: major version mismatch")
	ErrSizeMismatch    = errors.New("native: file size accounting mismatch")
	ErrUnknownLayer    = errors.New("native: unknown layer type")
	ErrOperandIndex    = errors.New("native: operand index out of range")
	ErrInputShape      = errors.New("native: input operand batch must be 1")
	ErrLengthOverflow  = errors.New("native: operand data length exceeds int32")
)

// Graph ist die geladene, unveraenderliche Topologie eines Modells
type Graph struct {
	Major uint32
	Minor uint32

	Layers   []Layer
	Operands []Operand
}

// CloneOperands kopiert alle Operanden ohne Daten-Puffer.
// Das Template wird dabei nie veraendert.
func (g *Graph) CloneOperands() []Operand {
	clone := make([]Operand, len(g.Operands))
	copy(clone, g.Operands)
	for i := range clone {
		clone[i].Length = 0
		clone[i].Data = nil
	}
	return clone
}

// FindOperand gibt den Index des Operanden mit dem Namen zurueck, oder -1
func (g *Graph) FindOperand(name string) int {
	for i := range g.Operands {
		if g.Operands[i].Name == name {
			return i
		}
	}
	return -1
}

// InputNames gibt die Namen aller Input-Operanden zurueck
func (g *Graph) InputNames() []string {
	var names []string
	for i := range g.Operands {
		if g.Operands[i].Kind == KindInput {
			names = append(names, g.Operands[i].Name)
		}
	}
	return names
}

// OutputNames gibt die Namen aller Output-Operanden zurueck
func (g *Graph) OutputNames() []string {
	var names []string
	for i := range g.Operands {
		if g.Operands[i].Kind == KindOutput {
			names = append(names, g.Operands[i].Name)
		}
	}
	return names
}

// WeightBytes summiert die Groesse aller Kernel- und Bias-Puffer
func (g *Graph) WeightBytes() uint64 {
	var total uint64
	for i := range g.Layers {
		switch p := g.Layers[i].Params.(type) {
		case *Conv2DParams:
			total += uint64(len(p.Kernel)+len(p.Biases)) * 4
		case *DenseParams:
			total += uint64(len(p.Kernel)+len(p.Biases)) * 4
		}
	}
	return total
}

// cursor liest typisierte Werte und fuehrt Buch ueber konsumierte Bytes
type cursor struct {
	rs       io.ReadSeeker
	fileSize int64
	consumed int64
}

func (c *cursor) u32() (uint32, error) {
	var v uint32
	if err := binary.Read(c.rs, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	c.consumed += 4
	return v, nil
}

func (c *cursor) f32() (float32, error) {
	var v float32
	if err := binary.Read(c.rs, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	c.consumed += 4
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.rs, buf); err != nil {
		return nil, err
	}
	c.consumed += int64(n)
	return buf, nil
}

// floats liest count Werte im angegebenen Kernel-Format.
// Float16-Werte werden beim Laden nach Float32 entpackt.
func (c *cursor) floats(count int64, format KernelFormat) ([]float32, error) {
	elemSize := int64(4)
	if format == KernelFloat16 {
		elemSize = 2
	}
	if count <= 0 || count*elemSize > c.fileSize-c.consumed {
		return nil, fmt.Errorf("%w: kernel data of %d elements does not fit remaining file", ErrSizeMismatch, count)
	}

	switch format {
	case KernelFloat16:
		raw := make([]uint16, count)
		if err := binary.Read(c.rs, binary.LittleEndian, raw); err != nil {
			return nil, err
		}
		c.consumed += count * 2

		values := make([]float32, count)
		for i, bits := range raw {
			values[i] = float16.Frombits(bits).Float32()
		}
		return values, nil
	default:
		values := make([]float32, count)
		if err := binary.Read(c.rs, binary.LittleEndian, values); err != nil {
			return nil, err
		}
		c.consumed += count * 4
		return values, nil
	}
}

// operandIndex liest einen Operand-Index und prueft die Schranke
func (c *cursor) operandIndex(operandCount uint32) (int32, error) {
	v, err := c.u32()
	if err != nil {
		return 0, err
	}
	if v >= operandCount {
		return 0, fmt.Errorf("%w: index %d, have %d operands", ErrOperandIndex, v, operandCount)
	}
	return int32(v), nil
}

// Decode laedt einen Graphen aus dem ReadSeeker.
//
// Schlaegt der Ladevorgang an irgendeiner Stelle fehl, wird kein
// partieller Graph zurueckgegeben.
func Decode(rs io.ReadSeeker) (*Graph, error) {
	fileSize, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	c := &cursor{rs: rs, fileSize: fileSize}

	magic, err := c.bytes(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(magic) != Magic {
		return nil, ErrBadMagic
	}

	major, err := c.u32()
	if err != nil {
		return nil, err
	}
	if major != MajorVersion {
		return nil, fmt.Errorf("%w: file has %d, engine expects %d", ErrVersionMismatch, major, MajorVersion)
	}

	// Minor-Version wird gelesen, aber derzeit nicht geprueft
	minor, err := c.u32()
	if err != nil {
		return nil, err
	}

	headerSize := c.consumed

	// Das Format beschreibt sich vom Dateiende her: die letzten 8 Bytes
	// tragen layer_count und operand_count.
	if fileSize < headerSize+8 {
		return nil, ErrSizeMismatch
	}
	if _, err := rs.Seek(fileSize-8, io.SeekStart); err != nil {
		return nil, err
	}
	layerCount, err := c.u32()
	if err != nil {
		return nil, err
	}
	operandCount, err := c.u32()
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}

	// Grobe Plausibilitaet gegen die Dateigroesse, bevor Speicher
	// in Zaehler-Groessenordnung angelegt wird
	if int64(layerCount)*12+int64(operandCount)*28 > fileSize {
		return nil, fmt.Errorf("%w: %d layers / %d operands exceed file size %d", ErrSizeMismatch, layerCount, operandCount, fileSize)
	}

	graph := &Graph{
		Major:    major,
		Minor:    minor,
		Layers:   make([]Layer, 0, layerCount),
		Operands: make([]Operand, operandCount),
	}

	for i := uint32(0); i < layerCount; i++ {
		layerType, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}

		before := c.consumed
		layer, err := parseLayer(c, LayerType(layerType), operandCount)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if c.consumed == before {
			return nil, fmt.Errorf("layer %d: %w: empty parameter block", i, ErrSizeMismatch)
		}

		graph.Layers = append(graph.Layers, *layer)
	}

	for i := uint32(0); i < operandCount; i++ {
		if err := parseOperand(c, graph); err != nil {
			return nil, fmt.Errorf("operand record %d: %w", i, err)
		}
	}

	// Die Footer-Bytes sind bereits ueber den Cursor gezaehlt, die
	// Summe muss jetzt exakt die Dateigroesse treffen
	if c.consumed != fileSize {
		return nil, fmt.Errorf("%w: consumed %d of %d bytes", ErrSizeMismatch, c.consumed, fileSize)
	}

	return graph, nil
}

// parseOperand liest einen Operand-Record an seinen Ziel-Index
func parseOperand(c *cursor, graph *Graph) error {
	index, err := c.operandIndex(uint32(len(graph.Operands)))
	if err != nil {
		return err
	}
	oprd := &graph.Operands[index]

	nameLen, err := c.u32()
	if err != nil {
		return err
	}
	if nameLen == 0 || nameLen > MaxOperandName {
		return fmt.Errorf("%w: operand name length %d", ErrSizeMismatch, nameLen)
	}
	name, err := c.bytes(int(nameLen))
	if err != nil {
		return err
	}
	oprd.Name = string(name)

	kind, err := c.u32()
	if err != nil {
		return err
	}
	switch OperandKind(kind) {
	case KindInput, KindOutput, KindIntermediate:
		oprd.Kind = OperandKind(kind)
	default:
		return fmt.Errorf("%w: operand kind %d", ErrSizeMismatch, kind)
	}

	dataType, err := c.u32()
	if err != nil {
		return err
	}
	if DataType(dataType) != Float32 {
		return fmt.Errorf("%w: data type %d, only float32 is supported", ErrSizeMismatch, dataType)
	}
	oprd.DataType = Float32

	for dim := 0; dim < 4; dim++ {
		v, err := c.u32()
		if err != nil {
			return err
		}
		oprd.Dims[dim] = int32(v)
	}
	if oprd.Kind == KindInput && oprd.Dims[0] != 1 {
		return fmt.Errorf("%w: operand %q has batch %d", ErrInputShape, oprd.Name, oprd.Dims[0])
	}

	oprd.NHWC = true
	return nil
}

// parseLayer liest den Parameter-Block eines Layers.
// Ein unbekannter Typ-Code ist ein harter Ladefehler.
func parseLayer(c *cursor, t LayerType, operandCount uint32) (*Layer, error) {
	switch t {
	case LayerConv2D:
		return parseConv2D(c, operandCount)
	case LayerDepthToSpace:
		return parseDepthToSpace(c, operandCount)
	case LayerMaximum:
		return parseMaximum(c, operandCount)
	case LayerMathBinary:
		return parseMathBinary(c, operandCount)
	case LayerMathUnary:
		return parseMathUnary(c, operandCount)
	case LayerDense:
		return parseDense(c, operandCount)
	default:
		return nil, fmt.Errorf("%w: code %d", ErrUnknownLayer, uint32(t))
	}
}

func parseConv2D(c *cursor, operandCount uint32) (*Layer, error) {
	params := &Conv2DParams{}

	var head [6]uint32
	for i := range head {
		v, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("conv2d header: %w", err)
		}
		head[i] = v
	}
	params.Activation = Activation(head[0])
	params.InputNum = int32(head[1])
	params.OutputNum = int32(head[2])
	params.KernelSize = int32(head[3])
	params.Padding = PaddingMethod(head[4])
	params.Dilation = int32(head[5])

	if params.Activation >= activationCount {
		return nil, fmt.Errorf("conv2d: invalid activation %d", params.Activation)
	}
	if params.Padding >= paddingCount {
		return nil, fmt.Errorf("conv2d: invalid padding method %d", params.Padding)
	}
	if params.InputNum < 1 || params.OutputNum < 1 || params.KernelSize < 1 || params.Dilation < 1 {
		return nil, fmt.Errorf("conv2d: invalid geometry in=%d out=%d kernel=%d dilation=%d",
			params.InputNum, params.OutputNum, params.KernelSize, params.Dilation)
	}

	hasBias, err := c.u32()
	if err != nil {
		return nil, err
	}
	params.HasBias = hasBias != 0

	kernelFormat, err := c.u32()
	if err != nil {
		return nil, err
	}
	if KernelFormat(kernelFormat) >= kernelFormatCount {
		return nil, fmt.Errorf("conv2d: invalid kernel format %d", kernelFormat)
	}
	params.Format = KernelFormat(kernelFormat)

	kernelLen := int64(params.OutputNum) * int64(params.KernelSize) * int64(params.KernelSize) * int64(params.InputNum)
	params.Kernel, err = c.floats(kernelLen, params.Format)
	if err != nil {
		return nil, fmt.Errorf("conv2d kernel: %w", err)
	}
	if params.HasBias {
		params.Biases, err = c.floats(int64(params.OutputNum), params.Format)
		if err != nil {
			return nil, fmt.Errorf("conv2d biases: %w", err)
		}
	}

	return layerTail(c, LayerConv2D, params, 1, operandCount)
}

func parseDepthToSpace(c *cursor, operandCount uint32) (*Layer, error) {
	block, err := c.u32()
	if err != nil {
		return nil, err
	}
	if block < 1 {
		return nil, fmt.Errorf("depth_to_space: invalid block size %d", block)
	}
	return layerTail(c, LayerDepthToSpace, &DepthToSpaceParams{BlockSize: int32(block)}, 1, operandCount)
}

func parseMaximum(c *cursor, operandCount uint32) (*Layer, error) {
	val, err := c.f32()
	if err != nil {
		return nil, err
	}
	return layerTail(c, LayerMaximum, &MaximumParams{Val: val}, 1, operandCount)
}

func parseMathBinary(c *cursor, operandCount uint32) (*Layer, error) {
	op, err := c.u32()
	if err != nil {
		return nil, err
	}
	if MathBinaryOp(op) >= mathBinaryCount {
		return nil, fmt.Errorf("math_binary: invalid op %d", op)
	}

	input0Const, err := c.u32()
	if err != nil {
		return nil, err
	}
	input1Const, err := c.u32()
	if err != nil {
		return nil, err
	}
	if input0Const != 0 && input1Const != 0 {
		return nil, fmt.Errorf("math_binary: both inputs are constants")
	}
	val, err := c.f32()
	if err != nil {
		return nil, err
	}

	params := &MathBinaryParams{
		Op:          MathBinaryOp(op),
		Input0Const: input0Const != 0,
		Input1Const: input1Const != 0,
		Val:         val,
	}

	inputs := 2
	if params.Input0Const || params.Input1Const {
		inputs = 1
	}
	return layerTail(c, LayerMathBinary, params, inputs, operandCount)
}

func parseMathUnary(c *cursor, operandCount uint32) (*Layer, error) {
	op, err := c.u32()
	if err != nil {
		return nil, err
	}
	if MathUnaryOp(op) >= mathUnaryCount {
		return nil, fmt.Errorf("math_unary: invalid op %d", op)
	}
	return layerTail(c, LayerMathUnary, &MathUnaryParams{Op: MathUnaryOp(op)}, 1, operandCount)
}

func parseDense(c *cursor, operandCount uint32) (*Layer, error) {
	params := &DenseParams{}

	activation, err := c.u32()
	if err != nil {
		return nil, err
	}
	if Activation(activation) >= activationCount {
		return nil, fmt.Errorf("dense: invalid activation %d", activation)
	}
	params.Activation = Activation(activation)

	inputNum, err := c.u32()
	if err != nil {
		return nil, err
	}
	outputNum, err := c.u32()
	if err != nil {
		return nil, err
	}
	params.InputNum = int32(inputNum)
	params.OutputNum = int32(outputNum)
	if params.InputNum < 1 || params.OutputNum < 1 {
		return nil, fmt.Errorf("dense: invalid geometry in=%d out=%d", params.InputNum, params.OutputNum)
	}

	hasBias, err := c.u32()
	if err != nil {
		return nil, err
	}
	params.HasBias = hasBias != 0

	kernelFormat, err := c.u32()
	if err != nil {
		return nil, err
	}
	if KernelFormat(kernelFormat) >= kernelFormatCount {
		return nil, fmt.Errorf("dense: invalid kernel format %d", kernelFormat)
	}
	params.Format = KernelFormat(kernelFormat)

	params.Kernel, err = c.floats(int64(params.InputNum)*int64(params.OutputNum), params.Format)
	if err != nil {
		return nil, fmt.Errorf("dense kernel: %w", err)
	}
	if params.HasBias {
		params.Biases, err = c.floats(int64(params.OutputNum), params.Format)
		if err != nil {
			return nil, fmt.Errorf("dense biases: %w", err)
		}
	}

	return layerTail(c, LayerDense, params, 1, operandCount)
}

// layerTail liest die Input-Indizes und den Output-Index eines Layers
func layerTail(c *cursor, t LayerType, params LayerParams, inputs int, operandCount uint32) (*Layer, error) {
	layer := &Layer{Type: t, Params: params}

	for i := 0; i < inputs; i++ {
		idx, err := c.operandIndex(operandCount)
		if err != nil {
			return nil, err
		}
		layer.Inputs = append(layer.Inputs, idx)
	}

	output, err := c.operandIndex(operandCount)
	if err != nil {
		return nil, err
	}
	layer.Output = output

	return layer, nil
}
