package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// ErrMemoryBudgetExceeded is returned when an allocation would take the
// allocator past its configured budget.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// MemoryStats contains buffer memory usage statistics of an Allocator.
type MemoryStats struct {
	// BudgetBytes is the configured budget; zero means unlimited.
	BudgetBytes uint64

	// UsedBytes is the size of all live buffers.
	UsedBytes uint64

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// BufferCount is the number of live buffers.
	BufferCount int

	// ReleasedCount is the total number of buffers released.
	ReleasedCount uint64

	// Utilization is UsedBytes/BudgetBytes, or 0 without a budget.
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	if s.BudgetBytes == 0 {
		return fmt.Sprintf("Memory[%d KB used, %d KB peak, %d buffers, %d released]",
			s.UsedBytes/1024, s.PeakBytes/1024, s.BufferCount, s.ReleasedCount)
	}
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, %d buffers, %d released]",
		s.Utilization*100,
		s.UsedBytes/1024,
		s.BudgetBytes/1024,
		s.BufferCount,
		s.ReleasedCount)
}

// bufferEntry is one live buffer known to the ledger.
type bufferEntry struct {
	label     string
	sizeBytes uint64
}

// memoryLedger tracks live buffer allocations against an optional budget.
// It is safe for concurrent use.
type memoryLedger struct {
	mu sync.Mutex

	budgetBytes uint64
	usedBytes   uint64
	peakBytes   uint64
	released    uint64

	buffers map[hal.Buffer]bufferEntry
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{buffers: make(map[hal.Buffer]bufferEntry)}
}

// reserve checks that size more bytes fit the budget.
func (m *memoryLedger) reserve(label string, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budgetBytes > 0 && m.usedBytes+size > m.budgetBytes {
		return fmt.Errorf("%w: %s needs %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, label, size, m.usedBytes, m.budgetBytes)
	}
	return nil
}

func (m *memoryLedger) register(buf hal.Buffer, label string, size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[buf] = bufferEntry{label: label, sizeBytes: size}
	m.usedBytes += size
	if m.usedBytes > m.peakBytes {
		m.peakBytes = m.usedBytes
	}
}

// unregister forgets buf. Unknown buffers are ignored.
func (m *memoryLedger) unregister(buf hal.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.buffers[buf]
	if !ok {
		return
	}
	delete(m.buffers, buf)
	m.usedBytes -= entry.sizeBytes
	m.released++
}

func (m *memoryLedger) setBudget(bytes uint64) {
	m.mu.Lock()
	m.budgetBytes = bytes
	m.mu.Unlock()
}

func (m *memoryLedger) stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var utilization float64
	if m.budgetBytes > 0 {
		utilization = float64(m.usedBytes) / float64(m.budgetBytes)
	}
	return MemoryStats{
		BudgetBytes:   m.budgetBytes,
		UsedBytes:     m.usedBytes,
		PeakBytes:     m.peakBytes,
		BufferCount:   len(m.buffers),
		ReleasedCount: m.released,
		Utilization:   utilization,
	}
}
