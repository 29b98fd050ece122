// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// FSType is a file system type.
type FSType string

// Special file system types.
const (
	FSTypeDevPts FSType = "devpts"
	FSTypeDevTmp FSType = "devtmpfs"
	FSTypeProc   FSType = "proc"
	FSTypeSys    FSType = "sysfs"

	defaultDirMode = 0o755
)

// MountFlags are mount flags as defined by mount(2).
type MountFlags uintptr

// Mount flags used by the [SystemMounts].
const (
	MountFlagNoAtime MountFlags = unix.MS_NOATIME
	MountFlagRemount MountFlags = unix.MS_REMOUNT
)

// MountSpec describes a single mount operation.
type MountSpec struct {
	// Target is the absolute path of the mount point.
	Target string

	// Source is the source device to mount. If empty and FSType is set, it is
	// set to the string of the type.
	Source string

	// FSType is the file system type. It is empty for a remount.
	FSType FSType

	// Flags are optional mount flags as defined by mount(2).
	Flags MountFlags

	// Data are optional additional parameters that depend on the [FSType].
	Data string

	// CreateTarget determines if the target directory is created if it does
	// not exist yet.
	CreateTarget bool

	// DirOnly skips the mount syscall. Only the target directory is created.
	DirOnly bool

	// MayFail determines if a failure of this operation is tolerated. If set,
	// a failure is recorded as best effort error instead of failing the boot.
	MayFail bool
}

// IsRemount returns true if the spec changes the flags of an existing mount.
func (s MountSpec) IsRemount() bool {
	return s.Flags&MountFlagRemount != 0
}

func (s MountSpec) source() string {
	if s.Source == "" && s.FSType != "" {
		return string(s.FSType)
	}

	return s.Source
}

// MountTable is the set of mount operations run on boot.
type MountTable struct {
	Root   MountSpec
	Dev    MountSpec
	DevPts MountSpec
	DevShm MountSpec
	Proc   MountSpec
	Sys    MountSpec
}

// SystemMounts returns the mount operations required for usual system
// operations, like accessing kernel variables, modifying kernel knobs or
// accessing devices.
func SystemMounts() MountTable {
	return MountTable{
		Root: MountSpec{
			Target: "/",
			Flags:  MountFlagNoAtime | MountFlagRemount,
		},
		Dev: MountSpec{
			Target:       "/dev",
			FSType:       FSTypeDevTmp,
			Flags:        MountFlagNoAtime,
			CreateTarget: true,
		},
		DevPts: MountSpec{
			Target:       "/dev/pts",
			FSType:       FSTypeDevPts,
			Flags:        MountFlagNoAtime,
			CreateTarget: true,
			MayFail:      true,
		},
		DevShm: MountSpec{
			Target:       "/dev/shm",
			CreateTarget: true,
			DirOnly:      true,
			MayFail:      true,
		},
		Proc: MountSpec{
			Target:       "/proc",
			FSType:       FSTypeProc,
			Flags:        MountFlagNoAtime,
			Data:         "hidepid=invisible",
			CreateTarget: true,
		},
		Sys: MountSpec{
			Target:       "/sys",
			FSType:       FSTypeSys,
			Flags:        MountFlagNoAtime,
			CreateTarget: true,
		},
	}
}

// MountExecutor issues single mount operations.
type MountExecutor struct {
	sys Syscalls
}

// NewMountExecutor creates a new [MountExecutor] using the given [Syscalls].
// If sys is nil, [HostSyscalls] are used.
func NewMountExecutor(sys Syscalls) *MountExecutor {
	if sys == nil {
		sys = HostSyscalls{}
	}

	return &MountExecutor{sys: sys}
}

// EnsureDir creates the directory at path if it does not exist.
//
// It is not an error if the directory exists already or is created
// concurrently by someone else.
func (e *MountExecutor) EnsureDir(path string) error {
	_, err := e.sys.Stat(path)
	if err == nil {
		return nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	err = e.sys.Mkdir(path, defaultDirMode)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	return nil
}

// Mount runs the given [MountSpec].
//
// If the spec requires it, the target directory is created first. Any error
// is returned as [MountError]. There are no retries.
func (e *MountExecutor) Mount(spec MountSpec) error {
	if spec.CreateTarget {
		if err := e.EnsureDir(spec.Target); err != nil {
			return &MountError{Target: spec.Target, Err: err}
		}
	}

	if spec.DirOnly {
		return nil
	}

	err := e.sys.Mount(
		spec.source(),
		spec.Target,
		string(spec.FSType),
		spec.Flags,
		spec.Data,
	)
	if err != nil {
		return &MountError{Target: spec.Target, Err: err}
	}

	return nil
}
