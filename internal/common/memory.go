package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is a small snapshot of runtime memory usage, reported by the
// server health endpoint.
type MemoryStats struct {
	AllocBytes     uint64 `json:"alloc_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	HeapInuseBytes uint64 `json:"heap_inuse_bytes"`
	NumGC          uint32 `json:"num_gc"`
	Goroutines     int    `json:"goroutines"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:     m.Alloc,
		SysBytes:       m.Sys,
		HeapInuseBytes: m.HeapInuse,
		NumGC:          m.NumGC,
		Goroutines:     runtime.NumGoroutine(),
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Sys: %d KB, GC: %d, goroutines: %d",
		m.AllocBytes/1024, m.SysBytes/1024, m.NumGC, m.Goroutines)
}
