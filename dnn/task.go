// task.go - Auftragsverwaltung der Engine
//
// Enthaelt:
// - ExecParams: Parameter eines Execute-Aufrufs
// - Task: ein Inferenz-Auftrag mit Fortschrittszaehlern
// - Subtask: eine einzelne Netz-Auswertung eines Tasks
package dnn

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ExecParams beschreibt einen Inferenz-Auftrag. Input und Output
// bleiben bis zur Entnahme des Ergebnisses im Besitz der Engine.
type ExecParams struct {
	InputName   string
	OutputNames []string
	Input       *Frame
	Output      *Frame
	Async       bool
}

// Task ist ein laufender Auftrag. Er gilt als fertig, sobald alle
// abgeleiteten Subtasks abgeschlossen sind.
type Task struct {
	id          uuid.UUID
	inputName   string
	outputNames []string
	inFrame     *Frame
	outFrame    *Frame
	async       bool
	doIOProc    bool

	subtasksTotal atomic.Int32
	subtasksDone  atomic.Int32

	mu  sync.Mutex
	err error
}

func newTask(params *ExecParams) *Task {
	return &Task{
		id:          uuid.New(),
		inputName:   params.InputName,
		outputNames: params.OutputNames,
		inFrame:     params.Input,
		outFrame:    params.Output,
		async:       params.Async,
		doIOProc:    true,
	}
}

func (t *Task) done() bool {
	return t.subtasksDone.Load() == t.subtasksTotal.Load()
}

// setError haelt den ersten Fehler fest, weitere werden verworfen
func (t *Task) setError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", t.id.String()),
		slog.String("input", t.inputName),
		slog.Any("outputs", t.outputNames),
		slog.Bool("async", t.async),
	)
}

// Subtask ist eine einzelne Netz-Auswertung. Bei diesem Backend
// erzeugt jeder Task genau einen Subtask.
type Subtask struct {
	task *Task
}
