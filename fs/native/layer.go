// layer.go - Layer-Typen und Parameter-Varianten
//
// Dieses Modul enthaelt:
// - LayerType: geschlossene, versionierte Operator-Enumeration
// - Layer: ein Operator-Knoten mit Operand-Indizes und Parametern
// - LayerParams: Parameter-Varianten pro Operator-Typ
// - Activation/Padding/Math-Op Enumerationen
package native

// LayerType ist der Operator-Typ-Code aus der Model-Datei.
// Die Enumeration ist geschlossen; die Codes 3 (mirror_pad) und
// 7 (avg_pool) sind reserviert und werden beim Laden abgewiesen.
type LayerType uint32

const (
	LayerConv2D       LayerType = 1
	LayerDepthToSpace LayerType = 2
	LayerMaximum      LayerType = 4
	LayerMathBinary   LayerType = 5
	LayerMathUnary    LayerType = 6
	LayerDense        LayerType = 8
)

// String gibt den Namen des Operator-Typs zurueck
func (t LayerType) String() string {
	switch t {
	case LayerConv2D:
		return "conv2d"
	case LayerDepthToSpace:
		return "depth_to_space"
	case LayerMaximum:
		return "maximum"
	case LayerMathBinary:
		return "math_binary"
	case LayerMathUnary:
		return "math_unary"
	case LayerDense:
		return "dense"
	default:
		return "unknown"
	}
}

// Layer ist ein Operator-Knoten des Graphen.
// Die Reihenfolge der Layer in der Datei ist die Ausfuehrungsreihenfolge.
type Layer struct {
	Type   LayerType
	Inputs []int32
	Output int32
	Params LayerParams
}

// LayerParams ist die Parameter-Variante eines Layers.
// Jeder Operator-Typ traegt genau eine konkrete Variante; die
// Ausfuehrung verzweigt erschoepfend ueber den konkreten Typ.
type LayerParams interface {
	layerParams()
}

// Activation ist die Aktivierungsfunktion fuer Conv2D und Dense
type Activation uint32

const (
	ActivationNone Activation = iota
	ActivationRelu
	ActivationTanh
	ActivationSigmoid
	ActivationLeakyRelu

	activationCount
)

// PaddingMethod bestimmt die Randbehandlung fuer Conv2D
type PaddingMethod uint32

const (
	PaddingValid PaddingMethod = iota
	PaddingSame

	paddingCount
)

// KernelFormat beschreibt die Ablage der Kernel-Gewichte in der Datei
type KernelFormat uint32

const (
	KernelFloat32 KernelFormat = iota
	KernelFloat16

	kernelFormatCount
)

// Conv2DParams sind die Parameter eines Faltungs-Layers.
// Kernel-Layout: [output][ky][kx][input], Zeilen-major.
// Format beschreibt die Ablage in der Datei; im Speicher liegen die
// Gewichte immer als Float32 vor.
type Conv2DParams struct {
	Activation Activation
	InputNum   int32
	OutputNum  int32
	KernelSize int32
	Padding    PaddingMethod
	Dilation   int32
	HasBias    bool
	Format     KernelFormat
	Kernel     []float32
	Biases     []float32
}

func (*Conv2DParams) layerParams() {}

// DepthToSpaceParams sind die Parameter eines DepthToSpace-Layers
type DepthToSpaceParams struct {
	BlockSize int32
}

func (*DepthToSpaceParams) layerParams() {}

// MaximumParams klemmen jedes Element gegen eine Konstante
type MaximumParams struct {
	Val float32
}

func (*MaximumParams) layerParams() {}

// MathBinaryOp ist die Operation eines binaeren Mathe-Layers
type MathBinaryOp uint32

const (
	MathBinarySub MathBinaryOp = iota
	MathBinaryAdd
	MathBinaryMul
	MathBinaryRealDiv
	MathBinaryMin
	MathBinaryMax

	mathBinaryCount
)

// MathBinaryParams sind die Parameter eines binaeren Mathe-Layers.
// Genau einer der beiden Eingaenge darf durch die Konstante Val
// ersetzt sein (Input0Const bzw. Input1Const).
type MathBinaryParams struct {
	Op          MathBinaryOp
	Input0Const bool
	Input1Const bool
	Val         float32
}

func (*MathBinaryParams) layerParams() {}

// MathUnaryOp ist die Operation eines unaeren Mathe-Layers
type MathUnaryOp uint32

const (
	MathUnaryAbs MathUnaryOp = iota
	MathUnarySin
	MathUnaryCos
	MathUnaryTan
	MathUnaryAsin
	MathUnaryAcos
	MathUnaryAtan
	MathUnarySinh
	MathUnaryCosh
	MathUnaryTanh
	MathUnaryCeil
	MathUnaryFloor
	MathUnaryRound
	MathUnaryExp

	mathUnaryCount
)

// MathUnaryParams sind die Parameter eines unaeren Mathe-Layers
type MathUnaryParams struct {
	Op MathUnaryOp
}

func (*MathUnaryParams) layerParams() {}

// DenseParams sind die Parameter eines voll verbundenen Layers.
// Kernel-Layout: [input][output], Zeilen-major.
type DenseParams struct {
	Activation Activation
	InputNum   int32
	OutputNum  int32
	HasBias    bool
	Format     KernelFormat
	Kernel     []float32
	Biases     []float32
}

func (*DenseParams) layerParams() {}
