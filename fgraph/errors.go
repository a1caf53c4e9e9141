/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fgraph implements the filter graph core: PIDs, filters, the
// graph resolver, packet dispatch, backpressure, and event propagation
// (spec.md §4). Grounded throughout on ingest.Muxer's connection/dispatch
// supervision and processors.ProcessorSet's chained-processing model,
// generalized to a dynamically-resolved graph of typed filters.
package fgraph

import "errors"

// Error taxonomy, spec.md §7. Sentinel errors rather than a numeric code
// table, following the Err* block convention in muxer.go/config/loader.go.
var (
	// Argument errors
	ErrBadParam              = errors.New("fgraph: bad parameter")
	ErrNotSupported          = errors.New("fgraph: not supported")
	ErrProfileNotSupported   = errors.New("fgraph: profile not supported")
	ErrRequiresNewInstance   = errors.New("fgraph: filter requires a new instance")

	// Resource errors
	ErrOutOfMemory   = errors.New("fgraph: out of memory")
	ErrIO            = errors.New("fgraph: io error")
	ErrFilterNotFound = errors.New("fgraph: filter type not found in registry")
	ErrURL           = errors.New("fgraph: url error")

	// Data errors
	ErrCorrupted          = errors.New("fgraph: corrupted data")
	ErrNonCompliantStream = errors.New("fgraph: non-compliant bitstream")
	ErrBufferTooSmall     = errors.New("fgraph: buffer too small")

	// Network errors
	ErrAddressNotFound     = errors.New("fgraph: address not found")
	ErrConnectionFailure   = errors.New("fgraph: connection failure")
	ErrNetworkFailure      = errors.New("fgraph: network failure")
	ErrConnectionClosed    = errors.New("fgraph: connection closed")
	ErrNetworkEmpty        = errors.New("fgraph: network empty")
	ErrUDPTimeout          = errors.New("fgraph: udp timeout")
	ErrAuthenticationFailure = errors.New("fgraph: authentication failure")

	// State errors
	ErrServiceError         = errors.New("fgraph: service error")
	ErrNotFound             = errors.New("fgraph: not found")
	ErrInvalidConfiguration = errors.New("fgraph: invalid configuration")
	ErrPendingPacket        = errors.New("fgraph: pending packet")
	ErrEOS                  = errors.New("fgraph: end of stream")

	// Resolver-specific
	ErrNoChain      = errors.New("fgraph: no filter chain connects source to destination")
	ErrChainTooDeep = errors.New("fgraph: resolver exceeded max chain length")
	ErrLoopDetected = errors.New("fgraph: resolver loop detected")
)
