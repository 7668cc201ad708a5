// Package native - Native DNN Model-Format
//
// Dieses Modul definiert die Operanden des Tensor-Graphen:
// - Operand: benannter Tensor-Knoten mit Shape und Datentyp
// - OperandKind: Input, Output, Intermediate
// - DataType: Element-Datentyp (derzeit nur Float32)
// - DataLength/Alloc: Laengenberechnung mit int32-Schranke
package native

import (
	"fmt"
	"math"
)

// OperandKind beschreibt die Rolle eines Operanden im Graphen
type OperandKind int32

const (
	KindInput        OperandKind = 1
	KindOutput       OperandKind = 2
	KindIntermediate OperandKind = 3
)

// String gibt den Namen der Operand-Rolle zurueck
func (k OperandKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindIntermediate:
		return "intermediate"
	default:
		return "unknown"
	}
}

// DataType beschreibt den Element-Datentyp eines Operanden
type DataType int32

// Float32 ist derzeit der einzige unterstuetzte Element-Datentyp
const Float32 DataType = 1

// MaxOperandName begrenzt die Laenge eines Operand-Namens in Bytes
const MaxOperandName = 128

// Operand ist ein benannter Tensor-Knoten.
//
// Shape und Metadaten sind nach dem Laden unveraenderlich; nur der
// Daten-Puffer einer Request-Kopie wird zur Laufzeit belegt. Dims ist
// [batch, height, width, channels], NHWC-Layout.
type Operand struct {
	Name      string
	Kind      OperandKind
	DataType  DataType
	Dims      [4]int32
	NHWC      bool
	Consumers int32

	// Length ist die Puffer-Laenge in Bytes, Data der Puffer selbst.
	// Beide sind nur in Request-Kopien belegt, nie im Template.
	Length int32
	Data   []float32
}

// Elements gibt die Element-Anzahl ueber alle vier Dimensionen zurueck
func (o *Operand) Elements() int64 {
	n := int64(1)
	for _, d := range o.Dims {
		n *= int64(d)
	}
	return n
}

// DataLength gibt die Puffer-Laenge in Bytes zurueck.
// Ueberschreitet das Produkt die int32-Schranke, schlaegt die
// Berechnung mit ErrLengthOverflow fehl.
func (o *Operand) DataLength() (int32, error) {
	length := int64(4) // sizeof(float32)
	for _, d := range o.Dims {
		if d < 0 {
			return 0, fmt.Errorf("%w: operand %q has negative dimension", ErrLengthOverflow, o.Name)
		}
		length *= int64(d)
		if length > math.MaxInt32 {
			return 0, fmt.Errorf("%w: operand %q", ErrLengthOverflow, o.Name)
		}
	}
	return int32(length), nil
}

// Alloc setzt Length und legt den Daten-Puffer neu an.
// Eine leere Shape (Produkt 0) ist kein gueltiger Puffer.
func (o *Operand) Alloc() error {
	length, err := o.DataLength()
	if err != nil {
		return err
	}
	if length == 0 {
		return fmt.Errorf("operand %q has empty shape %v", o.Name, o.Dims)
	}

	o.Length = length
	o.Data = make([]float32, length/4)
	return nil
}

// Reset verwirft den Daten-Puffer, Metadaten bleiben erhalten
func (o *Operand) Reset() {
	o.Length = 0
	o.Data = nil
}
