// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit_test

import (
	"context"
	"io/fs"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aibor/ttyinit/sysinit"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// callLog records operations of concurrently used fakes in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.calls)
}

func (l *callLog) index(call string) int {
	return slices.Index(l.list(), call)
}

// requireOrder fails if any call is missing or the calls are not recorded
// in the given order.
func requireOrder(t *testing.T, log *callLog, calls ...string) {
	t.Helper()

	last := -1

	for _, call := range calls {
		idx := log.index(call)
		require.NotEqual(t, -1, idx, "call %q missing in %v", call, log.list())
		require.Greater(t, idx, last, "call %q out of order in %v", call, log.list())

		last = idx
	}
}

type fakeSyscalls struct {
	log *callLog

	mu   sync.Mutex
	dirs map[string]bool

	mountErrs map[string]error
	mkdirErrs map[string]error
	delays    map[string]time.Duration
}

var _ sysinit.Syscalls = (*fakeSyscalls)(nil)

func newFakeSyscalls(log *callLog) *fakeSyscalls {
	return &fakeSyscalls{
		log:       log,
		dirs:      map[string]bool{"/": true},
		mountErrs: map[string]error{},
		mkdirErrs: map[string]error{},
		delays:    map[string]time.Duration{},
	}
}

func (s *fakeSyscalls) Stat(path string) (fs.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirs[path] {
		return nil, nil
	}

	return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

func (s *fakeSyscalls) Mkdir(path string, _ fs.FileMode) error {
	s.log.add("mkdir " + path)

	if err := s.mkdirErrs[path]; err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirs[path] {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}

	s.dirs[path] = true

	return nil
}

func (s *fakeSyscalls) Mount(_, target, _ string, _ sysinit.MountFlags, _ string) error {
	time.Sleep(s.delays[target])

	s.log.add("mount " + target)

	return s.mountErrs[target]
}

type fakeNetwork struct {
	log  *callLog
	errs map[string]error
}

var _ sysinit.NetworkConfigurator = (*fakeNetwork)(nil)

func (n *fakeNetwork) ConfigureAddress(_ context.Context, iface sysinit.InterfaceConfig) error {
	call := "address " + iface.Name
	n.log.add(call)

	if iface.Name == "panic" {
		panic("network panicked")
	}

	return n.errs[call]
}

func (n *fakeNetwork) ConfigureRoute(_ context.Context, route sysinit.RouteConfig) error {
	call := "route " + route.Destination
	n.log.add(call)

	return n.errs[call]
}

type fakeDevices struct {
	log         *callLog
	daemonErr   error
	coldplugErr error
}

var _ sysinit.DeviceBridge = (*fakeDevices)(nil)

func (d *fakeDevices) StartDaemon() error {
	d.log.add("udevd")
	return d.daemonErr
}

func (d *fakeDevices) Coldplug(_ context.Context) error {
	d.log.add("coldplug")
	return d.coldplugErr
}

// fakeRunner records programs in "name arg..." form.
type fakeRunner struct {
	log  callLog
	errs map[string]error
}

var _ sysinit.Runner = (*fakeRunner)(nil)

func (r *fakeRunner) record(name string, args []string) error {
	call := name
	for _, arg := range args {
		call += " " + arg
	}

	r.log.add(call)

	return r.errs[call]
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	return r.record(name, args)
}

func (r *fakeRunner) Start(name string, args ...string) error {
	return r.record("start "+name, args)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []sysinit.Event
}

var _ sysinit.Reporter = (*eventRecorder)(nil)

func (r *eventRecorder) Report(event sysinit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *eventRecorder) list() []sysinit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

func (r *eventRecorder) find(step, target string) (sysinit.Event, bool) {
	for _, event := range r.list() {
		if event.Step == step && event.Target == target {
			return event, true
		}
	}

	return sysinit.Event{}, false
}

// fakeTerminal records the operations of a session. Errors can be injected
// per operation.
type fakeTerminal struct {
	log  *callLog
	errs map[string]error

	mu      sync.Mutex
	written string
}

var _ sysinit.Terminal = (*fakeTerminal)(nil)

func (f *fakeTerminal) op(name string) error {
	f.log.add(name)
	return f.errs[name]
}

func (f *fakeTerminal) Write(p []byte) (int, error) {
	if err := f.op("banner"); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.written += string(p)

	return len(p), nil
}

func (f *fakeTerminal) SetRaw() error {
	return f.op("raw")
}

func (f *fakeTerminal) SetCooked() error {
	return f.op("cooked")
}

func (f *fakeTerminal) WaitReadable(ctx context.Context) error {
	if err := f.op("wait"); err != nil {
		return err
	}

	return ctx.Err()
}

func (f *fakeTerminal) Stdio() ([]*os.File, error) {
	if err := f.op("stdio"); err != nil {
		return nil, err
	}

	files := make([]*os.File, 0, 3)

	for range 3 {
		file, err := os.Open(os.DevNull)
		if err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	return files, nil
}

// fakeShell exits right away with the given status. After the given number
// of spawns, it calls cancel.
type fakeShell struct {
	log      *callLog
	err      error
	status   int
	cancelAt int
	cancel   context.CancelFunc

	mu     sync.Mutex
	spawns int
}

var _ sysinit.ShellSpawner = (*fakeShell)(nil)

func (s *fakeShell) Spawn(stdio []*os.File) (<-chan sysinit.ExitStatus, error) {
	s.log.add("spawn")

	if len(stdio) != 3 {
		return nil, sysinit.ErrStdio
	}

	if s.err != nil {
		return nil, s.err
	}

	s.mu.Lock()
	s.spawns++
	spawns := s.spawns
	s.mu.Unlock()

	exited := make(chan sysinit.ExitStatus, 1)
	exited <- sysinit.ExitStatus{Pid: 100 + spawns, Status: exitStatus(s.status)}

	if s.cancel != nil && spawns == s.cancelAt {
		s.cancel()
	}

	return exited, nil
}

func (s *fakeShell) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spawns
}

func exitStatus(code int) unix.WaitStatus {
	return unix.WaitStatus(uint32(code) << 8)
}
