// Package backend holds lifetime-scoped service handles. A Handle starts
// empty and is filled once the backing connection is up; until then Get
// reports common.ErrNotReady instead of blocking or panicking.
package backend

import (
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

type Handle[T any] struct {
	mu    sync.RWMutex
	v     T
	set   bool
	ready chan struct{}
	name  string
}

// NewHandle returns an empty handle. name is used in error messages.
func NewHandle[T any](name string) *Handle[T] {
	return &Handle[T]{ready: make(chan struct{}), name: name}
}

// Ready returns a handle that is already initialised with v.
func Ready[T any](name string, v T) *Handle[T] {
	h := NewHandle[T](name)
	h.Set(v)
	return h
}

// Set publishes v. Only the first call has an effect.
func (h *Handle[T]) Set(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.set {
		return
	}
	h.v = v
	h.set = true
	close(h.ready)
}

// Get returns the value or an error wrapping common.ErrNotReady.
func (h *Handle[T]) Get() (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.set {
		var zero T
		return zero, &NotReadyError{Name: h.name}
	}
	return h.v, nil
}

// Done is closed once the handle has a value.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.ready
}

type NotReadyError struct {
	Name string
}

func (e *NotReadyError) Error() string {
	return e.Name + ": " + common.ErrNotReady.Error()
}

func (e *NotReadyError) Unwrap() error {
	return common.ErrNotReady
}
