// pool.go - fester Pool vorbereiteter Inferenz-Requests
//
// Enthaelt:
//   - RequestItem: Operanden-Arbeitskopie plus zugeordneter Subtask
//   - requestPool: feste Anzahl Requests, acquire schlaegt bei leerem
//     Pool sofort fehl
package dnn

import (
	"github.com/shubhanshu02/ffmpeg-1/dnn/queue"
	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

// RequestItem traegt eine private Arbeitskopie der Operanden-Tabelle.
// Die Puffer werden waehrend der Ausfuehrung angelegt und bei der
// Rueckgabe je nach Ausgang behalten oder verworfen.
type RequestItem struct {
	operands []native.Operand
	subtask  *Subtask
}

type requestPool struct {
	idle     *queue.Safe[*RequestItem]
	capacity int
}

func newRequestPool(g *native.Graph, n int) *requestPool {
	p := &requestPool{
		idle:     queue.NewSafe[*RequestItem](),
		capacity: n,
	}
	for i := 0; i < n; i++ {
		p.idle.PushBack(&RequestItem{operands: g.CloneOperands()})
	}
	return p
}

// acquire liefert sofort einen freien Request oder ErrPoolExhausted,
// es wird nie gewartet
func (p *requestPool) acquire() (*RequestItem, error) {
	req, ok := p.idle.PopFront()
	if !ok {
		return nil, ErrPoolExhausted
	}
	return req, nil
}

// release gibt einen Request in den Pool zurueck. Mit discard werden
// die Operanden-Puffer verworfen, sonst bleiben sie fuer die naechste
// Ausfuehrung gleicher Form erhalten.
func (p *requestPool) release(req *RequestItem, discard bool) {
	req.subtask = nil
	if discard {
		for i := range req.operands {
			req.operands[i].Reset()
		}
	}
	p.idle.PushBack(req)
}

func (p *requestPool) idleCount() int {
	return p.idle.Size()
}

// drain entnimmt alle freien Requests, fuer den Teardown
func (p *requestPool) drain() []*RequestItem {
	var reqs []*RequestItem
	for {
		req, ok := p.idle.PopFront()
		if !ok {
			return reqs
		}
		reqs = append(reqs, req)
	}
}
