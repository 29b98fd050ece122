// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DeviceBridge starts device event handling. See [DeviceEvents].
type DeviceBridge interface {
	StartDaemon() error
	Coldplug(ctx context.Context) error
}

var _ DeviceBridge = DeviceEvents{}

// Boot brings the system up.
//
// The root file system is remounted first. /dev, /proc and /sys are mounted
// concurrently once the root file system is writable. /dev/pts and /dev/shm
// are set up once /dev is mounted. Network and device events are set up once
// /sys is mounted.
type Boot struct {
	Mounts   MountTable
	Executor *MountExecutor

	// Network configures Interfaces and Routes, in that order. If nil, no
	// network configuration is done.
	Network    NetworkConfigurator
	Interfaces []InterfaceConfig
	Routes     []RouteConfig

	// Devices is started after the network configuration. If nil, no device
	// event handling is started.
	Devices DeviceBridge

	Reporter Reporter
}

// BootResult describes a finished boot.
type BootResult struct {
	Duration time.Duration

	// BestEffort has the errors of all steps that failed without failing
	// the boot.
	BestEffort BestEffortErrors
}

// Run runs all boot steps.
//
// It returns a [*BootFatalError] if any step failed the system can not run
// without. Errors of other steps are collected in [BootResult.BestEffort].
// Steps are not retried and can not be cancelled once started.
func (b *Boot) Run(ctx context.Context) (*BootResult, error) {
	start := time.Now()
	writable := NewReadinessSignal()
	bestEffort := new(bestEffortCollector)

	group, ctx := errgroup.WithContext(ctx)

	goRecover(group, func() error {
		return b.remountRoot(writable, bestEffort)
	})
	goRecover(group, func() error {
		return b.setupDev(ctx, writable, bestEffort)
	})
	goRecover(group, func() error {
		return b.mountWritable(ctx, writable, b.Mounts.Proc, bestEffort)
	})
	goRecover(group, func() error {
		return b.setupSys(ctx, writable, bestEffort)
	})

	err := group.Wait()

	result := &BootResult{
		Duration:   time.Since(start),
		BestEffort: bestEffort.list(),
	}

	if b.Reporter != nil {
		outcome := OutcomeOK
		if err != nil {
			outcome = OutcomeFailed
		} else if len(result.BestEffort) > 0 {
			outcome = OutcomeWarning
		}

		b.Reporter.Report(Event{
			Step:     StepBoot,
			Outcome:  outcome,
			Duration: result.Duration,
			Err:      err,
		})
	}

	return result, err
}

func (b *Boot) executor() *MountExecutor {
	if b.Executor == nil {
		return NewMountExecutor(nil)
	}

	return b.Executor
}

func (b *Boot) remountRoot(writable *ReadinessSignal, bestEffort *bestEffortCollector) error {
	err := b.mount(StepRemount, b.Mounts.Root, bestEffort)
	if err != nil {
		return err
	}

	writable.Set()

	return nil
}

func (b *Boot) setupDev(
	ctx context.Context,
	writable *ReadinessSignal,
	bestEffort *bestEffortCollector,
) error {
	err := b.mountWritable(ctx, writable, b.Mounts.Dev, bestEffort)
	if err != nil {
		return err
	}

	var group errgroup.Group

	goRecover(&group, func() error {
		return b.mountWritable(ctx, writable, b.Mounts.DevPts, bestEffort)
	})
	goRecover(&group, func() error {
		return b.mountWritable(ctx, writable, b.Mounts.DevShm, bestEffort)
	})

	return group.Wait()
}

func (b *Boot) setupSys(
	ctx context.Context,
	writable *ReadinessSignal,
	bestEffort *bestEffortCollector,
) error {
	err := b.mountWritable(ctx, writable, b.Mounts.Sys, bestEffort)
	if err != nil {
		return err
	}

	if b.Network != nil {
		for _, iface := range b.Interfaces {
			b.bestEffort(bestEffort, StepAddress, iface.Name, func() error {
				return b.Network.ConfigureAddress(ctx, iface)
			})
		}

		for _, route := range b.Routes {
			b.bestEffort(bestEffort, StepRoute, route.Destination, func() error {
				return b.Network.ConfigureRoute(ctx, route)
			})
		}
	}

	if b.Devices != nil {
		b.bestEffort(bestEffort, StepDaemon, "devices", b.Devices.StartDaemon)
		b.bestEffort(bestEffort, StepColdplug, "devices", func() error {
			return b.Devices.Coldplug(ctx)
		})
	}

	return nil
}

// mountWritable waits for the root file system to be writable before it
// runs the given spec.
func (b *Boot) mountWritable(
	ctx context.Context,
	writable *ReadinessSignal,
	spec MountSpec,
	bestEffort *bestEffortCollector,
) error {
	if err := writable.Wait(ctx); err != nil {
		return &BootFatalError{Target: spec.Target, Err: err}
	}

	step := StepMount
	if spec.DirOnly {
		step = StepMkdir
	}

	return b.mount(step, spec, bestEffort)
}

func (b *Boot) mount(step string, spec MountSpec, bestEffort *bestEffortCollector) error {
	err := track(b.Reporter, step, spec.Target, spec.MayFail, func() error {
		return b.executor().Mount(spec)
	})
	if err == nil {
		return nil
	}

	if spec.MayFail {
		bestEffort.add(&StepError{Step: step + " " + spec.Target, Err: err})
		return nil
	}

	return &BootFatalError{Target: spec.Target, Err: err}
}

func (b *Boot) bestEffort(
	bestEffort *bestEffortCollector,
	step, target string,
	fn func() error,
) {
	err := track(b.Reporter, step, target, true, fn)
	if err != nil {
		bestEffort.add(&StepError{Step: step + " " + target, Err: err})
	}
}

// goRecover runs fn in the group and turns a panic into an error wrapping
// [ErrPanic].
func goRecover(group *errgroup.Group, fn func() error) {
	group.Go(func() (err error) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if recoveredErr, ok := rec.(error); ok {
				err = fmt.Errorf("%w: %w", ErrPanic, recoveredErr)
			} else {
				err = fmt.Errorf("%w: %v", ErrPanic, rec)
			}
		}()

		return fn()
	})
}

type bestEffortCollector struct {
	mu   sync.Mutex
	errs BestEffortErrors
}

func (c *bestEffortCollector) add(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errs = append(c.errs, err)
}

func (c *bestEffortCollector) list() BestEffortErrors {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.errs
}
