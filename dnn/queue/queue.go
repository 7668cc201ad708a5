// Package queue - FIFO-Warteschlangen fuer Tasks, Subtasks und Requests
//
// Dieses Modul enthaelt:
// - Queue: einfache FIFO-Warteschlange ueber eine Arraylist
// - Safe: mutex-geschuetzte Variante fuer mehrere Producer/Consumer
package queue

import (
	"sync"

	"github.com/emirpasic/gods/v2/lists/arraylist"
)

// Queue ist eine unsynchronisierte FIFO-Warteschlange
type Queue[T comparable] struct {
	list *arraylist.List[T]
}

// New erstellt eine leere Warteschlange
func New[T comparable]() *Queue[T] {
	return &Queue[T]{list: arraylist.New[T]()}
}

// PushBack haengt einen Eintrag ans Ende an
func (q *Queue[T]) PushBack(v T) {
	q.list.Add(v)
}

// PopFront entfernt den Kopf und gibt ihn zurueck
func (q *Queue[T]) PopFront() (T, bool) {
	v, ok := q.list.Get(0)
	if ok {
		q.list.Remove(0)
	}
	return v, ok
}

// PeekFront gibt den Kopf zurueck, ohne ihn zu entfernen
func (q *Queue[T]) PeekFront() (T, bool) {
	return q.list.Get(0)
}

// Remove entfernt den ersten Eintrag gleich v, egal an welcher Position
func (q *Queue[T]) Remove(v T) bool {
	idx := q.list.IndexOf(v)
	if idx < 0 {
		return false
	}
	q.list.Remove(idx)
	return true
}

// Size gibt die Anzahl der Eintraege zurueck
func (q *Queue[T]) Size() int {
	return q.list.Size()
}

// Safe ist eine FIFO-Warteschlange fuer mehrere Threads
type Safe[T comparable] struct {
	mu sync.Mutex
	q  *Queue[T]
}

// NewSafe erstellt eine leere synchronisierte Warteschlange
func NewSafe[T comparable]() *Safe[T] {
	return &Safe[T]{q: New[T]()}
}

// PushBack haengt einen Eintrag ans Ende an
func (s *Safe[T]) PushBack(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.PushBack(v)
}

// PopFront entfernt den Kopf und gibt ihn zurueck
func (s *Safe[T]) PopFront() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.PopFront()
}

// PeekFront gibt den Kopf zurueck, ohne ihn zu entfernen
func (s *Safe[T]) PeekFront() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.PeekFront()
}

// Remove entfernt den ersten Eintrag gleich v, egal an welcher Position
func (s *Safe[T]) Remove(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Remove(v)
}

// Size gibt die Anzahl der Eintraege zurueck
func (s *Safe[T]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Size()
}
