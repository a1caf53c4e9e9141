/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package reservoir

// Queue is the common surface fgraph's PidInst uses regardless of which
// backing mode a session selected (spec.md §4.1 "expose a session-level
// toggle; default to locked"). Both Locked and LockFree satisfy it; only
// Locked additionally supports Head/Get/Enum (peeking without consuming
// isn't a safe operation to expose generically over a lock-free SPSC
// ring without breaking its single-consumer contract).
type Queue[T any] interface {
	Add(item T)
	Pop() (item T, ok bool)
	Count() int
}

var (
	_ Queue[int] = (*Locked[int])(nil)
	_ Queue[int] = (*LockFree[int])(nil)
)
