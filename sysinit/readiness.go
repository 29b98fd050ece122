// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
	"sync"
)

// ReadinessSignal is a one-shot broadcast gate. It starts unset and once
// [ReadinessSignal.Set] is called it stays set forever. Any number of
// goroutines may wait for it.
//
// The zero value is not usable, use [NewReadinessSignal].
type ReadinessSignal struct {
	once sync.Once
	done chan struct{}
}

// NewReadinessSignal creates a new unset [ReadinessSignal].
func NewReadinessSignal() *ReadinessSignal {
	return &ReadinessSignal{
		done: make(chan struct{}),
	}
}

// Set releases all current and future waiters. Calling it more than once has
// no effect.
func (s *ReadinessSignal) Set() {
	s.once.Do(func() {
		close(s.done)
	})
}

// IsSet returns true once [ReadinessSignal.Set] was called.
func (s *ReadinessSignal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal is set. It returns nil right away if it is set
// already. If the context is done before, an error wrapping [ErrNotReady] and
// the context's cause is returned.
func (s *ReadinessSignal) Wait(ctx context.Context) error {
	if s.IsSet() {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, context.Cause(ctx))
	}
}
