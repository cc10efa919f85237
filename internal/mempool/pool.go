// Package mempool pools the per-pixel scratch buffers of the scan hot path.
package mempool

import "sync"

const step = 1024

// Pool hands out zeroed slices of T bucketed by size class.
type Pool[T any] struct {
	classes sync.Map // size class (int) -> *sync.Pool
}

// sizeClass rounds n up to the next multiple of 1024, minimum 1024.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	if sp, ok := p.classes.Load(cls); ok {
		return sp.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	sp, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return sp.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed slice of length n. Return it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, _ := p.class(cls).Get().(*[]T)
	if bp == nil || cap(*bp) < cls {
		return make([]T, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// Put returns buf to the pool. Nil slices and slices too small for any
// class are dropped.
func (p *Pool[T]) Put(buf []T) {
	if cap(buf) < step {
		return
	}
	// Round down so a buffer never serves a class larger than its capacity.
	cls := cap(buf) / step * step
	buf = buf[:cap(buf)]
	p.class(cls).Put(&buf)
}

var boolPool Pool[bool]

// GetBool returns a zeroed []bool of length n from the shared pool.
func GetBool(n int) []bool { return boolPool.Get(n) }

// PutBool returns a buffer obtained from GetBool.
func PutBool(buf []bool) { boolPool.Put(buf) }
