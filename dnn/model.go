// model.go - Laden des Modells und Aufbau der Engine
//
// Enthaelt:
// - Options: Konfiguration der Engine (Pool-Groesse, Threads, Hooks)
// - Model: Graph, Request-Pool und Auftrags-Queues
// - LoadModel/NewModel: Modell von Datei bzw. Reader laden
// - InputShape/OutputShape: Formabfragen ohne regulaeren Auftrag
package dnn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/shubhanshu02/ffmpeg-1/dnn/ops"
	"github.com/shubhanshu02/ffmpeg-1/dnn/queue"
	"github.com/shubhanshu02/ffmpeg-1/envconfig"
	"github.com/shubhanshu02/ffmpeg-1/format"
	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

var (
	// ErrPoolExhausted: kein freier Request im Pool, der Aufruf wartet nie
	ErrPoolExhausted = errors.New("dnn: no idle inference request available")

	// ErrOperandNotFound: benannter Operand existiert nicht im Modell
	ErrOperandNotFound = errors.New("dnn: operand not found in model")

	// ErrMultiOutput: dieses Backend unterstuetzt genau einen Ausgang
	ErrMultiOutput = errors.New("dnn: exactly one output is supported")

	// ErrClosed: Modell wurde bereits geschlossen
	ErrClosed = errors.New("dnn: model is closed")
)

// Options konfiguriert die Engine. Nullwerte werden durch die
// Umgebung (envconfig) bzw. Standard-Hooks ersetzt.
type Options struct {
	// NumRequests ist die feste Groesse des Request-Pools
	NumRequests int

	// Conv2DThreads begrenzt die Zeilen-Parallelitaet der Faltung,
	// 0 waehlt anhand der CPU-Zahl
	Conv2DThreads int

	// Input/Output ersetzen die Standard-Konvertierung
	Input  InputProc
	Output OutputProc

	// Executor ersetzt das Goroutine-Backend
	Executor Executor
}

// Model ist die geladene Engine. Execute, Flush, GetResult und Close
// duerfen von einem Aufrufer-Thread benutzt werden, Abschluesse laufen
// auf Executor-Goroutinen.
type Model struct {
	graph    *native.Graph
	opts     Options
	execOpts ops.Options
	executor Executor

	pool         *requestPool
	taskQueue    *queue.Safe[*Task]
	subtaskQueue *queue.Safe[*Subtask]

	closed atomic.Bool
}

// LoadModel laedt ein Modell aus einer Datei
func LoadModel(path string, opts Options) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := NewModel(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// NewModel dekodiert das Modell und legt den Request-Pool an
func NewModel(rs io.ReadSeeker, opts Options) (*Model, error) {
	graph, err := native.Decode(rs)
	if err != nil {
		return nil, err
	}
	if len(graph.Layers) == 0 || len(graph.Operands) == 0 {
		return nil, errors.New("dnn: model has no layers or operands")
	}

	if opts.NumRequests <= 0 {
		opts.NumRequests = int(envconfig.NumRequests())
	}
	if opts.Conv2DThreads <= 0 {
		opts.Conv2DThreads = int(envconfig.Conv2DThreads())
	}
	if opts.Executor == nil {
		opts.Executor = goroutineExecutor{}
	}

	m := &Model{
		graph:        graph,
		opts:         opts,
		execOpts:     ops.Options{Conv2DThreads: opts.Conv2DThreads},
		executor:     opts.Executor,
		pool:         newRequestPool(graph, opts.NumRequests),
		taskQueue:    queue.NewSafe[*Task](),
		subtaskQueue: queue.NewSafe[*Subtask](),
	}

	slog.Debug("model loaded",
		"version", fmt.Sprintf("%d.%d", graph.Major, graph.Minor),
		"layers", len(graph.Layers),
		"operands", len(graph.Operands),
		"requests", opts.NumRequests,
		"weights", format.HumanBytes2(graph.WeightBytes()))
	return m, nil
}

// Graph gibt den unveraenderlichen Modell-Graphen zurueck
func (m *Model) Graph() *native.Graph {
	return m.graph
}

// Capacity ist die feste Groesse des Request-Pools
func (m *Model) Capacity() int {
	return m.pool.capacity
}

// InputShape liefert die Modell-Dimensionen [batch,height,width,channels]
// des benannten Eingangs. Hoehe und Breite koennen 0 sein, sie werden
// erst beim Befuellen aus dem Frame uebernommen.
func (m *Model) InputShape(name string) ([4]int32, error) {
	idx := m.graph.FindOperand(name)
	if idx < 0 {
		return [4]int32{}, fmt.Errorf("%w: input %q", ErrOperandNotFound, name)
	}
	oprd := &m.graph.Operands[idx]
	if oprd.Kind != native.KindInput {
		return [4]int32{}, fmt.Errorf("dnn: operand %q is not an input node", name)
	}
	return oprd.Dims, nil
}

// OutputShape ermittelt die Ausgabegroesse fuer eine Eingabegroesse
// durch eine Probe-Auswertung ohne Frame-Konvertierung. Der Auftrag
// laeuft am Task-Queue vorbei und taucht nie in GetResult auf.
func (m *Model) OutputShape(inputName, outputName string, inWidth, inHeight int) (int, int, error) {
	dims, err := m.InputShape(inputName)
	if err != nil {
		return 0, 0, err
	}

	inFrame := NewFrame(inWidth, inHeight, int(dims[3]))
	outFrame := &Frame{}
	task := newTask(&ExecParams{
		InputName:   inputName,
		OutputNames: []string{outputName},
		Input:       inFrame,
		Output:      outFrame,
	})
	task.doIOProc = false

	st := m.enqueueSubtask(task)
	req, err := m.pool.acquire()
	if err != nil {
		// nur den eigenen Subtask entfernen, vor der Probe koennen
		// noch Subtasks anderer Tasks auf Flush warten
		m.subtaskQueue.Remove(st)
		return 0, 0, err
	}
	if err := m.executeRequest(req); err != nil {
		return 0, 0, err
	}
	return outFrame.Width, outFrame.Height, nil
}
