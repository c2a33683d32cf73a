package utils

import (
	"runtime"

	"github.com/dustin/go-humanize"
)

// MemoryUsage is a snapshot of the Go heap
type MemoryUsage struct {
	HeapAlloc uint64 `json:"heap_alloc_bytes"`
	HeapSys   uint64 `json:"heap_sys_bytes"`
	NumGC     uint32 `json:"num_gc"`
}

// ReadMemoryUsage samples the runtime memory statistics
func ReadMemoryUsage() MemoryUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryUsage{HeapAlloc: m.HeapAlloc, HeapSys: m.HeapSys, NumGC: m.NumGC}
}

// CurrentHeapBytes returns the bytes of allocated heap objects
func CurrentHeapBytes() uint64 {
	return ReadMemoryUsage().HeapAlloc
}

// HeapAllocHuman renders HeapAlloc for log lines, e.g. "12 MiB"
func (m MemoryUsage) HeapAllocHuman() string {
	return humanize.IBytes(m.HeapAlloc)
}

// HeapSysHuman renders HeapSys for log lines
func (m MemoryUsage) HeapSysHuman() string {
	return humanize.IBytes(m.HeapSys)
}

// MemoryProbe reports the current heap size in bytes. Swappable in tests.
type MemoryProbe func() uint64
