// MODUL: dnn
// ZWECK: Tests fuer Laden, Auftragsablauf, Pool-Verhalten und Teardown
// INPUT: in-memory kodierte Identitaets-Modelle
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: fs/native, testing
package dnn

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

// identityModel kodiert ein Modell mit einem Add-0-Layer, das die
// Eingabe unveraendert durchreicht
func identityModel(t *testing.T, channels int32) *bytes.Reader {
	t.Helper()
	g := &native.Graph{
		Major: native.MajorVersion,
		Layers: []native.Layer{{
			Type:   native.LayerMathBinary,
			Inputs: []int32{0},
			Output: 1,
			Params: &native.MathBinaryParams{
				Op:          native.MathBinaryAdd,
				Input1Const: true,
				Val:         0,
			},
		}},
		Operands: []native.Operand{
			{Name: "x", Kind: native.KindInput, DataType: native.Float32, Dims: [4]int32{1, 0, 0, channels}, NHWC: true},
			{Name: "y", Kind: native.KindOutput, DataType: native.Float32, Dims: [4]int32{1, 0, 0, channels}, NHWC: true},
		},
	}
	var buf bytes.Buffer
	if err := native.Encode(&buf, g); err != nil {
		t.Fatalf("Encode fehlgeschlagen: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func newIdentityModel(t *testing.T, opts Options) *Model {
	t.Helper()
	m, err := NewModel(identityModel(t, 3), opts)
	if err != nil {
		t.Fatalf("NewModel fehlgeschlagen: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func patternFrame(width, height, channels int) *Frame {
	f := NewFrame(width, height, channels)
	for i := range f.Data {
		f.Data[i] = uint8(i % 251)
	}
	return f
}

// waitResult pollt GetResult bis zum erwarteten Status
func waitResult(t *testing.T, m *Model, want Status) *Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res, st := m.GetResult()
		if st == want {
			return res
		}
		if st != StatusNotReady && st != StatusEmpty {
			t.Fatalf("GetResult: Status %v, erwartet %v", st, want)
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timeout beim Warten auf Status %v", want)
	return nil
}

// manualExecutor haelt eingereichte Arbeit zurueck, bis der Test sie
// ausdruecklich laufen laesst
type manualExecutor struct {
	mu   sync.Mutex
	work []func() error
	done []chan error
}

func (e *manualExecutor) Submit(work func() error) <-chan error {
	done := make(chan error, 1)
	e.mu.Lock()
	e.work = append(e.work, work)
	e.done = append(e.done, done)
	e.mu.Unlock()
	return done
}

func (e *manualExecutor) runNext(t *testing.T) {
	t.Helper()
	e.mu.Lock()
	if len(e.work) == 0 {
		e.mu.Unlock()
		t.Fatal("keine zurueckgehaltene Arbeit")
	}
	work, done := e.work[0], e.done[0]
	e.work, e.done = e.work[1:], e.done[1:]
	e.mu.Unlock()
	done <- work()
}

func TestModelLoadAndProbe(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 2})

	if m.Capacity() != 2 {
		t.Errorf("Capacity = %d, erwartet 2", m.Capacity())
	}
	dims, err := m.InputShape("x")
	if err != nil {
		t.Fatalf("InputShape fehlgeschlagen: %v", err)
	}
	if dims[0] != 1 || dims[3] != 3 {
		t.Errorf("InputShape = %v, erwartet batch 1 und 3 Kanaele", dims)
	}
	if _, err := m.InputShape("y"); err == nil {
		t.Error("InputShape auf Output-Operand muss fehlschlagen")
	}
	if _, err := m.InputShape("nope"); !errors.Is(err, ErrOperandNotFound) {
		t.Errorf("InputShape = %v, erwartet ErrOperandNotFound", err)
	}
}

func TestOutputShapeProbe(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 1})

	w, h, err := m.OutputShape("x", "y", 5, 4)
	if err != nil {
		t.Fatalf("OutputShape fehlgeschlagen: %v", err)
	}
	if w != 5 || h != 4 {
		t.Errorf("OutputShape = %dx%d, erwartet 5x4", w, h)
	}

	// die Probe taucht nie als Ergebnis auf und gibt den Request zurueck
	if _, st := m.GetResult(); st != StatusEmpty {
		t.Errorf("GetResult nach Probe: Status %v, erwartet empty", st)
	}
	if m.pool.idleCount() != 1 {
		t.Errorf("Pool hat %d freie Requests, erwartet 1", m.pool.idleCount())
	}
}

func TestExecuteSyncIdentity(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 1})

	in := patternFrame(4, 4, 3)
	out := &Frame{}
	id, err := m.Execute(&ExecParams{
		InputName:   "x",
		OutputNames: []string{"y"},
		Input:       in,
		Output:      out,
	})
	if err != nil {
		t.Fatalf("Execute fehlgeschlagen: %v", err)
	}
	if id == uuid.Nil {
		t.Error("Execute lieferte keine Task-ID")
	}

	res, st := m.GetResult()
	if st != StatusDone {
		t.Fatalf("GetResult: Status %v, erwartet done", st)
	}
	if res.ID != id || res.Err != nil {
		t.Fatalf("Result = %+v, erwartet ID %v ohne Fehler", res, id)
	}
	if out.Width != 4 || out.Height != 4 || out.Channels != 3 {
		t.Fatalf("Output-Frame ist %dx%dx%d, erwartet 4x4x3", out.Width, out.Height, out.Channels)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Error("Identitaets-Modell hat die Daten veraendert")
	}

	if _, st := m.GetResult(); st != StatusEmpty {
		t.Errorf("zweites GetResult: Status %v, erwartet empty", st)
	}
	if m.pool.idleCount() != 1 {
		t.Errorf("Pool hat %d freie Requests, erwartet 1", m.pool.idleCount())
	}
}

func TestExecuteAsync(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 2})

	in := patternFrame(2, 2, 3)
	out := &Frame{}
	if _, err := m.Execute(&ExecParams{
		InputName:   "x",
		OutputNames: []string{"y"},
		Input:       in,
		Output:      out,
		Async:       true,
	}); err != nil {
		t.Fatalf("Execute fehlgeschlagen: %v", err)
	}

	res := waitResult(t, m, StatusDone)
	if res.Err != nil {
		t.Fatalf("Result mit Fehler: %v", res.Err)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Error("Identitaets-Modell hat die Daten veraendert")
	}
}

func TestExecuteMultiOutputRejected(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 1})

	_, err := m.Execute(&ExecParams{
		InputName:   "x",
		OutputNames: []string{"y", "z"},
		Input:       patternFrame(2, 2, 3),
		Output:      &Frame{},
	})
	if !errors.Is(err, ErrMultiOutput) {
		t.Fatalf("Execute = %v, erwartet ErrMultiOutput", err)
	}

	// die Ablehnung darf weder Task noch Request verbrauchen
	if _, st := m.GetResult(); st != StatusEmpty {
		t.Errorf("GetResult: Status %v, erwartet empty", st)
	}
	if m.pool.idleCount() != 1 {
		t.Errorf("Pool hat %d freie Requests, erwartet 1", m.pool.idleCount())
	}
}

func TestExecuteUnknownInput(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 1})

	_, err := m.Execute(&ExecParams{
		InputName:   "nope",
		OutputNames: []string{"y"},
		Input:       patternFrame(2, 2, 3),
		Output:      &Frame{},
	})
	if !errors.Is(err, ErrOperandNotFound) {
		t.Fatalf("Execute = %v, erwartet ErrOperandNotFound", err)
	}

	// der Fehler haengt am Task und wird bei der Entnahme gemeldet
	res, st := m.GetResult()
	if st != StatusFailed {
		t.Fatalf("GetResult: Status %v, erwartet failed", st)
	}
	if !errors.Is(res.Err, ErrOperandNotFound) {
		t.Errorf("Result.Err = %v, erwartet ErrOperandNotFound", res.Err)
	}
	if m.pool.idleCount() != 1 {
		t.Errorf("Pool hat %d freie Requests, erwartet 1", m.pool.idleCount())
	}
}

func TestExecuteChannelMismatch(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 1})

	_, err := m.Execute(&ExecParams{
		InputName:   "x",
		OutputNames: []string{"y"},
		Input:       patternFrame(2, 2, 1),
		Output:      &Frame{},
	})
	if err == nil {
		t.Fatal("Execute mit falscher Kanalzahl muss fehlschlagen")
	}
	if _, st := m.GetResult(); st != StatusFailed {
		t.Errorf("GetResult: Status %v, erwartet failed", st)
	}
}

func TestPoolExhaustedFailFast(t *testing.T) {
	exec := &manualExecutor{}
	m := newIdentityModel(t, Options{NumRequests: 1, Executor: exec})

	in1, out1 := patternFrame(2, 2, 3), &Frame{}
	if _, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: in1, Output: out1, Async: true,
	}); err != nil {
		t.Fatalf("erster Execute fehlgeschlagen: %v", err)
	}

	// der einzige Request ist unterwegs, der zweite Auftrag bleibt liegen
	in2, out2 := patternFrame(2, 2, 3), &Frame{}
	id2, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: in2, Output: out2, Async: true,
	})
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("zweiter Execute = %v, erwartet ErrPoolExhausted", err)
	}
	if id2 == uuid.Nil {
		t.Error("auch der liegengebliebene Auftrag braucht eine Task-ID")
	}
	if _, st := m.GetResult(); st != StatusNotReady {
		t.Errorf("GetResult: Status %v, erwartet not ready", st)
	}

	// ersten Auftrag fertigstellen, dann den Rest per Flush nachziehen
	exec.runNext(t)
	res1 := waitResult(t, m, StatusDone)
	if res1.Err != nil {
		t.Fatalf("erster Task fehlgeschlagen: %v", res1.Err)
	}

	if err := m.Flush(); err != nil {
		t.Fatalf("Flush fehlgeschlagen: %v", err)
	}
	exec.runNext(t)
	res2 := waitResult(t, m, StatusDone)
	if res2.ID != id2 {
		t.Errorf("zweites Ergebnis hat ID %v, erwartet %v", res2.ID, id2)
	}
	if !bytes.Equal(out2.Data, in2.Data) {
		t.Error("zweiter Task hat die Daten veraendert")
	}
}

// convMismatchModel kodiert ein Modell, dessen Conv2D-Kernel nur einen
// Kanal erwartet. Das Befuellen mit einem 3-Kanal-Frame gelingt, der
// Fehler faellt erst in der Layer-Ausfuehrung an.
func convMismatchModel(t *testing.T) *bytes.Reader {
	t.Helper()
	g := &native.Graph{
		Major: native.MajorVersion,
		Layers: []native.Layer{{
			Type:   native.LayerConv2D,
			Inputs: []int32{0},
			Output: 1,
			Params: &native.Conv2DParams{
				InputNum:   1,
				OutputNum:  1,
				KernelSize: 1,
				Dilation:   1,
				Kernel:     []float32{1},
			},
		}},
		Operands: []native.Operand{
			{Name: "x", Kind: native.KindInput, DataType: native.Float32, Dims: [4]int32{1, 0, 0, 3}, NHWC: true},
			{Name: "y", Kind: native.KindOutput, DataType: native.Float32, Dims: [4]int32{1, 0, 0, 1}, NHWC: true},
		},
	}
	var buf bytes.Buffer
	if err := native.Encode(&buf, g); err != nil {
		t.Fatalf("Encode fehlgeschlagen: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestExecuteLayerFailureRecyclesRequest(t *testing.T) {
	m, err := NewModel(convMismatchModel(t), Options{NumRequests: 1})
	if err != nil {
		t.Fatalf("NewModel fehlgeschlagen: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	_, err = m.Execute(&ExecParams{
		InputName:   "x",
		OutputNames: []string{"y"},
		Input:       patternFrame(2, 2, 3),
		Output:      &Frame{},
	})
	if err == nil {
		t.Fatal("Execute mit Kanal-Konflikt im Layer muss fehlschlagen")
	}

	res, st := m.GetResult()
	if st != StatusFailed {
		t.Fatalf("GetResult: Status %v, erwartet failed", st)
	}
	if res.Err == nil {
		t.Error("Result.Err fehlt fuer den fehlgeschlagenen Task")
	}

	// auch nach einem Fehler in der Ausfuehrung kehrt der Request in
	// den Pool zurueck
	if m.pool.idleCount() != 1 {
		t.Errorf("Pool hat %d freie Requests, erwartet 1", m.pool.idleCount())
	}
}

func TestOutputShapeProbeKeepsQueuedSubtasks(t *testing.T) {
	exec := &manualExecutor{}
	m := newIdentityModel(t, Options{NumRequests: 1, Executor: exec})

	if _, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: patternFrame(2, 2, 3), Output: &Frame{}, Async: true,
	}); err != nil {
		t.Fatalf("erster Execute fehlgeschlagen: %v", err)
	}

	in2, out2 := patternFrame(2, 2, 3), &Frame{}
	id2, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: in2, Output: out2, Async: true,
	})
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("zweiter Execute = %v, erwartet ErrPoolExhausted", err)
	}

	// die fehlgeschlagene Probe darf den wartenden Subtask des zweiten
	// Tasks nicht aus der Queue raeumen
	if _, _, err := m.OutputShape("x", "y", 4, 4); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("OutputShape = %v, erwartet ErrPoolExhausted", err)
	}
	if got := m.subtaskQueue.Size(); got != 1 {
		t.Fatalf("Subtask-Queue hat %d Eintraege, erwartet 1", got)
	}

	exec.runNext(t)
	waitResult(t, m, StatusDone)

	if err := m.Flush(); err != nil {
		t.Fatalf("Flush fehlgeschlagen: %v", err)
	}
	exec.runNext(t)
	res2 := waitResult(t, m, StatusDone)
	if res2.ID != id2 {
		t.Errorf("zweites Ergebnis hat ID %v, erwartet %v", res2.ID, id2)
	}
	if !bytes.Equal(out2.Data, in2.Data) {
		t.Error("zweiter Task hat die Daten veraendert")
	}
}

func TestFlushWithoutPendingWork(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 1})
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush ohne Auftraege = %v, erwartet nil", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	m := newIdentityModel(t, Options{NumRequests: 2})

	if err := m.Close(); err != nil {
		t.Fatalf("Close fehlgeschlagen: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("zweites Close = %v, erwartet nil", err)
	}
	if _, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: patternFrame(2, 2, 3), Output: &Frame{},
	}); !errors.Is(err, ErrClosed) {
		t.Errorf("Execute nach Close = %v, erwartet ErrClosed", err)
	}
	if err := m.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush nach Close = %v, erwartet ErrClosed", err)
	}
}

func TestCloseDropsQueuedTasks(t *testing.T) {
	exec := &manualExecutor{}
	m := newIdentityModel(t, Options{NumRequests: 1, Executor: exec})

	if _, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: patternFrame(2, 2, 3), Output: &Frame{}, Async: true,
	}); err != nil {
		t.Fatalf("Execute fehlgeschlagen: %v", err)
	}
	if _, err := m.Execute(&ExecParams{
		InputName: "x", OutputNames: []string{"y"},
		Input: patternFrame(2, 2, 3), Output: &Frame{}, Async: true,
	}); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Execute = %v, erwartet ErrPoolExhausted", err)
	}

	// Close verwirft beide Auftraege, ohne sie abzuschliessen
	if err := m.Close(); err != nil {
		t.Fatalf("Close fehlgeschlagen: %v", err)
	}
	if _, st := m.GetResult(); st != StatusEmpty {
		t.Errorf("GetResult nach Close: Status %v, erwartet empty", st)
	}
	if m.subtaskQueue.Size() != 0 {
		t.Errorf("Subtask-Queue hat nach Close noch %d Eintraege", m.subtaskQueue.Size())
	}
}

func TestEmptyModelRejected(t *testing.T) {
	g := &native.Graph{Major: native.MajorVersion}
	var buf bytes.Buffer
	if err := native.Encode(&buf, g); err != nil {
		t.Fatalf("Encode fehlgeschlagen: %v", err)
	}
	if _, err := NewModel(bytes.NewReader(buf.Bytes()), Options{NumRequests: 1}); err == nil {
		t.Fatal("NewModel mit leerem Graphen muss fehlschlagen")
	}
}
