// Package ops - Operator-Ausfuehrung fuer den nativen Graphen
//
// Dieses Modul enthaelt:
// - Execute: erschoepfende Verzweigung ueber die Parameter-Varianten
// - Options: Ausfuehrungsoptionen (Conv2D-Threads)
// - activate: Aktivierungsfunktionen fuer Conv2D und Dense
//
// Die Operator-Menge ist geschlossen; eine Parameter-Variante ohne
// Zweig ist ein Programmierfehler und wird als Fehler gemeldet.
package ops

import (
	"fmt"
	"math"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

// Options steuern die Ausfuehrung einzelner Operatoren
type Options struct {
	// Conv2DThreads begrenzt die Zeilen-Parallelitaet der Faltung.
	// 0 bedeutet automatisch (NumCPU).
	Conv2DThreads int
}

// Execute fuehrt einen Layer ueber den Request-Operanden aus.
// Der Output-Operand erhaelt seine Shape und einen frischen Puffer.
func Execute(layer *native.Layer, operands []native.Operand, opts Options) error {
	switch params := layer.Params.(type) {
	case *native.Conv2DParams:
		return execConv2D(layer, operands, params, opts)
	case *native.DepthToSpaceParams:
		return execDepthToSpace(layer, operands, params)
	case *native.MaximumParams:
		return execMaximum(layer, operands, params)
	case *native.MathBinaryParams:
		return execMathBinary(layer, operands, params)
	case *native.MathUnaryParams:
		return execMathUnary(layer, operands, params)
	case *native.DenseParams:
		return execDense(layer, operands, params)
	default:
		return fmt.Errorf("no executor for layer type %v", layer.Type)
	}
}

// input holt einen Eingabe-Operanden und prueft, dass er Daten traegt
func input(layer *native.Layer, operands []native.Operand, n int) (*native.Operand, error) {
	oprd := &operands[layer.Inputs[n]]
	if oprd.Data == nil {
		return nil, fmt.Errorf("input operand %q has no data", oprd.Name)
	}
	return oprd, nil
}

func activate(v float32, a native.Activation) float32 {
	switch a {
	case native.ActivationRelu:
		if v < 0 {
			return 0
		}
		return v
	case native.ActivationTanh:
		return float32(math.Tanh(float64(v)))
	case native.ActivationSigmoid:
		return float32(1 / (1 + math.Exp(-float64(v))))
	case native.ActivationLeakyRelu:
		if v < 0 {
			return 0.2 * v
		}
		return v
	default:
		return v
	}
}
