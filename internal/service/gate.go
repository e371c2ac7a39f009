package service

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLocked signals a sync is already in flight for this channel.
var ErrLocked = errors.New("sync already in progress")

// gate is a tiny 1-token semaphore with TryLock semantics (non-blocking fast-fail).
type gate struct{ ch chan struct{} }

func newGate() *gate {
	g := &gate{ch: make(chan struct{}, 1)}
	g.ch <- struct{}{} // token present => unlocked
	return g
}

func (g *gate) Lock() { <-g.ch }

func (g *gate) TryLock() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

func (g *gate) Unlock() {
	select {
	case g.ch <- struct{}{}:
	default:
		panic("unlock of unlocked gate")
	}
}

// gates hands out one gate per channel id. Same id maps to the same gate.
type gates struct {
	m sync.Map // map[string]*gate
}

func (gs *gates) get(id string) *gate {
	v, _ := gs.m.LoadOrStore(id, newGate())
	return v.(*gate)
}

// lock acquires the gate for id (blocking). Always returns a valid unlock func.
func (gs *gates) lock(id string) func() {
	g := gs.get(id)
	g.Lock()
	return g.Unlock
}

// forget discards the gate for id. Call it while holding the gate.
func (gs *gates) forget(id string) {
	gs.m.Delete(id)
}

// tryLock attempts to acquire the gate for id without blocking.
func (gs *gates) tryLock(id string) (func(), error) {
	g := gs.get(id)
	if !g.TryLock() {
		return func() {}, fmt.Errorf("channel %s: %w", id, ErrLocked)
	}
	return g.Unlock, nil
}
