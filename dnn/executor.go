// executor.go - Ausfuehrungs-Backend fuer asynchrone Inferenz
//
// Enthaelt:
// - Executor: Schnittstelle fuer das Einplanen von Arbeit
// - goroutineExecutor: Standard-Backend, eine Goroutine pro Auftrag
package dnn

// Executor plant eine Arbeitseinheit ein. Der zurueckgegebene Kanal
// liefert genau einen Wert, das Ergebnis der Arbeit.
type Executor interface {
	Submit(work func() error) <-chan error
}

type goroutineExecutor struct{}

func (goroutineExecutor) Submit(work func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- work()
	}()
	return done
}
