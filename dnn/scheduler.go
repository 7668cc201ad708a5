// scheduler.go - Auftragsablauf der Engine
//
// Enthaelt:
// - Execute: Auftrag einreihen und Request zuteilen
// - fillRequest/runLayers/complete: die drei Phasen einer Auswertung
// - Flush: liegengebliebene Subtasks asynchron nachziehen
// - GetResult: nicht-blockierende Entnahme am Queue-Kopf
// - Close: idempotenter Teardown
package dnn

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shubhanshu02/ffmpeg-1/dnn/ops"
	"github.com/shubhanshu02/ffmpeg-1/fs/native"
	"github.com/shubhanshu02/ffmpeg-1/logutil"
)

// Status beschreibt das Ergebnis eines GetResult-Aufrufs
type Status int

const (
	// StatusEmpty: keine eingereihten Tasks
	StatusEmpty Status = iota
	// StatusNotReady: der aelteste Task laeuft noch
	StatusNotReady
	// StatusDone: Task abgeschlossen und entnommen
	StatusDone
	// StatusFailed: Task fehlgeschlagen und entnommen
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusNotReady:
		return "not ready"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result ist ein entnommener Auftrag. Input und Output gehoeren ab
// jetzt wieder dem Aufrufer.
type Result struct {
	ID     uuid.UUID
	Input  *Frame
	Output *Frame
	Err    error
}

// Execute reiht einen Auftrag ein. Synchronen Auftraegen gehoert der
// Aufrufer-Thread bis zum Abschluss, asynchrone kehren nach der
// Eingabe-Konvertierung zurueck. Bei erschoepftem Pool schlaegt der
// Aufruf sofort fehl, der Auftrag bleibt fuer Flush eingereiht.
func (m *Model) Execute(params *ExecParams) (uuid.UUID, error) {
	if m.closed.Load() {
		return uuid.Nil, ErrClosed
	}
	if err := checkExecParams(params); err != nil {
		return uuid.Nil, err
	}

	task := newTask(params)
	m.taskQueue.PushBack(task)
	m.enqueueSubtask(task)

	req, err := m.pool.acquire()
	if err != nil {
		slog.Warn("no idle request, task stays queued", "task", task)
		return task.id, err
	}
	return task.id, m.executeRequest(req)
}

func checkExecParams(params *ExecParams) error {
	if params.InputName == "" {
		return errors.New("dnn: input name must not be empty")
	}
	if len(params.OutputNames) != 1 {
		return fmt.Errorf("%w: got %d output names", ErrMultiOutput, len(params.OutputNames))
	}
	if params.Input == nil || params.Output == nil {
		return errors.New("dnn: input and output frames must not be nil")
	}
	return nil
}

func (m *Model) enqueueSubtask(t *Task) *Subtask {
	t.subtasksTotal.Store(1)
	t.subtasksDone.Store(0)
	st := &Subtask{task: t}
	m.subtaskQueue.PushBack(st)
	return st
}

// executeRequest wertet den aeltesten Subtask mit dem Request aus.
// Fehler vor dem Start geben den Request mit verworfenen Puffern
// zurueck und landen am Task.
func (m *Model) executeRequest(req *RequestItem) error {
	st, ok := m.subtaskQueue.PeekFront()
	if !ok {
		m.pool.release(req, true)
		return errors.New("dnn: subtask queue is empty")
	}
	task := st.task

	if err := m.fillRequest(req); err != nil {
		task.setError(err)
		m.pool.release(req, true)
		return err
	}

	if task.async {
		m.startAsync(req)
		return nil
	}

	err := m.runLayers(req)
	m.complete(req, err)
	if err != nil {
		return err
	}
	if !task.done() {
		return errors.New("dnn: task not complete after synchronous execution")
	}
	return nil
}

func (m *Model) startAsync(req *RequestItem) {
	done := m.executor.Submit(func() error {
		return m.runLayers(req)
	})
	go func() {
		m.complete(req, <-done)
	}()
}

// fillRequest entnimmt den aeltesten Subtask, uebernimmt Hoehe und
// Breite aus dem Eingabe-Frame und befuellt den Eingangs-Operanden
func (m *Model) fillRequest(req *RequestItem) error {
	st, ok := m.subtaskQueue.PopFront()
	if !ok {
		return errors.New("dnn: subtask queue is empty")
	}
	req.subtask = st
	task := st.task

	var oprd *native.Operand
	for i := range req.operands {
		if req.operands[i].Name == task.inputName {
			oprd = &req.operands[i]
			break
		}
	}
	if oprd == nil {
		return fmt.Errorf("%w: input %q", ErrOperandNotFound, task.inputName)
	}
	if oprd.Kind != native.KindInput {
		return fmt.Errorf("dnn: operand %q is not an input node", task.inputName)
	}

	oprd.Dims[1] = int32(task.inFrame.Height)
	oprd.Dims[2] = int32(task.inFrame.Width)
	oprd.Reset()
	if err := oprd.Alloc(); err != nil {
		return err
	}

	if task.doIOProc {
		proc := m.opts.Input
		if proc == nil {
			proc = defaultInputProc
		}
		if err := proc(task.inFrame, tensorOf(oprd)); err != nil {
			return err
		}
	}
	logutil.Trace("request filled", "task", task, "input_dims", oprd.Dims)
	return nil
}

func (m *Model) runLayers(req *RequestItem) error {
	for i := range m.graph.Layers {
		layer := &m.graph.Layers[i]
		if err := ops.Execute(layer, req.operands, m.execOpts); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, layer.Type, err)
		}
	}
	return nil
}

// complete schliesst die Auswertung ab: Ausgaenge uebertragen, den
// Fortschrittszaehler erhoehen und den Request zurueckgeben. Bei
// Fehlern werden die Puffer verworfen, der Request kehrt trotzdem
// immer in den Pool zurueck.
func (m *Model) complete(req *RequestItem, execErr error) {
	task := req.subtask.task
	if execErr != nil {
		slog.Error("inference failed", "task", task, "error", execErr)
		task.setError(execErr)
		m.pool.release(req, true)
		return
	}

	for _, name := range task.outputNames {
		var oprd *native.Operand
		for i := range req.operands {
			if req.operands[i].Name == name {
				oprd = &req.operands[i]
				break
			}
		}
		if oprd == nil || oprd.Data == nil {
			task.setError(fmt.Errorf("%w: output %q", ErrOperandNotFound, name))
			m.pool.release(req, true)
			return
		}

		if task.doIOProc {
			proc := m.opts.Output
			if proc == nil {
				proc = defaultOutputProc
			}
			if err := proc(task.outFrame, tensorOf(oprd)); err != nil {
				task.setError(err)
				m.pool.release(req, true)
				return
			}
		} else {
			task.outFrame.Height = int(oprd.Dims[1])
			task.outFrame.Width = int(oprd.Dims[2])
			task.outFrame.Channels = int(oprd.Dims[3])
		}
	}

	task.subtasksDone.Add(1)
	m.pool.release(req, false)
	logutil.Trace("task complete", "task", task)
}

// Flush zieht einen liegengebliebenen Subtask asynchron nach. Ohne
// wartende Subtasks ist der Aufruf ein No-op.
func (m *Model) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	st, ok := m.subtaskQueue.PeekFront()
	if !ok {
		return nil
	}

	req, err := m.pool.acquire()
	if err != nil {
		return err
	}
	if err := m.fillRequest(req); err != nil {
		st.task.setError(err)
		m.pool.release(req, true)
		return err
	}
	m.startAsync(req)
	return nil
}

// GetResult prueft den aeltesten Task ohne zu warten. Done und Failed
// entnehmen den Task, die Frames gehoeren danach wieder dem Aufrufer.
func (m *Model) GetResult() (*Result, Status) {
	task, ok := m.taskQueue.PeekFront()
	if !ok {
		return nil, StatusEmpty
	}
	if err := task.Err(); err != nil {
		m.taskQueue.PopFront()
		return &Result{ID: task.id, Input: task.inFrame, Output: task.outFrame, Err: err}, StatusFailed
	}
	if !task.done() {
		return nil, StatusNotReady
	}
	m.taskQueue.PopFront()
	return &Result{ID: task.id, Input: task.inFrame, Output: task.outFrame}, StatusDone
}

// Close verwirft wartende Auftraege ohne Abschluss-Verarbeitung und
// gibt die gepoolten Requests frei. Weitere Aufrufe sind No-ops.
func (m *Model) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	for {
		if _, ok := m.subtaskQueue.PopFront(); !ok {
			break
		}
	}
	for {
		task, ok := m.taskQueue.PopFront()
		if !ok {
			break
		}
		task.inFrame = nil
		task.outFrame = nil
	}
	for _, req := range m.pool.drain() {
		for i := range req.operands {
			req.operands[i].Reset()
		}
	}
	return nil
}
