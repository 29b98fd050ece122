// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initramfs provides functions for building a bootable initramfs for
// ttyinit. The initramfs is a CPIO archive with the init as /init, the mount
// points it expects and the home directory of the login user.
package initramfs
