// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

var (
	// ErrSubmitterClosed is returned when submitting through a closed Submitter.
	ErrSubmitterClosed = errors.New("gpu: submitter is closed")

	// ErrNilSubmitter is returned when a stage is created without a Submitter.
	ErrNilSubmitter = errors.New("gpu: submitter is nil")
)

// pollInterval is how often Wait checks the queue for completed work.
const pollInterval = 200 * time.Microsecond

// inflightSubmission is a command buffer the queue may still be executing.
type inflightSubmission struct {
	index  uint64
	cmdBuf hal.CommandBuffer
}

// deferredRelease runs once every submission up to index has completed.
type deferredRelease struct {
	index   uint64
	release func()
}

// Submitter sends command buffers to the queue without waiting for them.
// Queue order is the only ordering between submissions. Command buffers and
// resources handed to Defer are released once PollCompleted reports that
// the queue has moved past them.
type Submitter struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	inflight []inflightSubmission
	deferred []deferredRelease

	// last is the highest submission index handed out by the queue.
	last uint64

	closed bool
}

// NewSubmitter creates a Submitter for the given device and queue.
func NewSubmitter(device hal.Device, queue hal.Queue) *Submitter {
	return &Submitter{device: device, queue: queue}
}

// Record encodes one command buffer with record and submits it. The
// returned index can be passed to Wait. Record must not end the encoder.
func (s *Submitter) Record(label string, record func(enc hal.CommandEncoder) error) (uint64, error) {
	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return 0, fmt.Errorf("gpu: create command encoder %q: %w", label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return 0, fmt.Errorf("gpu: begin encoding %q: %w", label, err)
	}
	if err := record(encoder); err != nil {
		encoder.DiscardEncoding()
		return 0, err
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return 0, fmt.Errorf("gpu: end encoding %q: %w", label, err)
	}
	return s.Submit(cmdBuf)
}

// Submit hands cmdBuf to the queue and returns its submission index. The
// command buffer is owned by the Submitter from here on.
func (s *Submitter) Submit(cmdBuf hal.CommandBuffer) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.device.FreeCommandBuffer(cmdBuf)
		return 0, ErrSubmitterClosed
	}
	s.reclaimLocked()

	index, err := s.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		s.device.FreeCommandBuffer(cmdBuf)
		return 0, fmt.Errorf("gpu: submit: %w", err)
	}
	s.inflight = append(s.inflight, inflightSubmission{index: index, cmdBuf: cmdBuf})
	if index > s.last {
		s.last = index
	}
	return index, nil
}

// Defer schedules release to run after everything submitted so far has
// completed. With nothing in flight it runs immediately.
func (s *Submitter) Defer(release func()) {
	s.mu.Lock()
	if s.closed || s.last == 0 || s.queue.PollCompleted() >= s.last {
		s.mu.Unlock()
		release()
		return
	}
	s.deferred = append(s.deferred, deferredRelease{index: s.last, release: release})
	s.mu.Unlock()
}

// Reclaim frees command buffers and runs deferred releases whose
// submissions have completed.
func (s *Submitter) Reclaim() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimLocked()
}

func (s *Submitter) reclaimLocked() {
	done := s.queue.PollCompleted()

	kept := s.inflight[:0]
	for _, sub := range s.inflight {
		if sub.index <= done {
			s.device.FreeCommandBuffer(sub.cmdBuf)
			continue
		}
		kept = append(kept, sub)
	}
	s.inflight = kept

	pending := s.deferred[:0]
	for _, d := range s.deferred {
		if d.index <= done {
			d.release()
			continue
		}
		pending = append(pending, d)
	}
	s.deferred = pending
}

// Pending returns the number of submissions not yet known to be complete.
func (s *Submitter) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimLocked()
	return len(s.inflight)
}

// Wait blocks until the submission with the given index has completed or
// ctx is done. It is meant for one-off readback, never the frame path.
func (s *Submitter) Wait(ctx context.Context, index uint64) error {
	if s.queue.PollCompleted() >= index {
		s.Reclaim()
		return nil
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("gpu: wait for submission %d: %w", index, ctx.Err())
		case <-ticker.C:
			if s.queue.PollCompleted() >= index {
				s.Reclaim()
				return nil
			}
		}
	}
}

// Close waits for the device to go idle and releases everything still held.
// Further submissions fail with ErrSubmitterClosed.
func (s *Submitter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if err := s.device.WaitIdle(); err != nil {
		slogger().Warn("gpu: wait idle on close failed", "error", err)
	}
	for _, sub := range s.inflight {
		s.device.FreeCommandBuffer(sub.cmdBuf)
	}
	for _, d := range s.deferred {
		d.release()
	}
	s.inflight = nil
	s.deferred = nil
}
