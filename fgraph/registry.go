/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"github.com/gravwell/fgraph/prop"
	"github.com/puzpuzpuz/xsync/v3"
)

// CapDirection is the direction a capability item applies to (spec.md §4.2).
type CapDirection uint8

const (
	CapInput CapDirection = iota
	CapOutput
	CapInputOutput
)

// CapFlag modifiers on a capability item, spec.md §4.2.
type CapFlag uint8

const (
	CapExcluded CapFlag = 1 << iota
	CapStatic
	CapOptional
	CapLoadedFilter
	// CapInBundle marks an item as continuing the previous bundle rather
	// than starting a new one. The first item of a caps array always
	// starts bundle 0 regardless of this bit.
	CapInBundle
)

// CapItem is one entry of a FilterReg.Caps array.
type CapItem struct {
	Key   prop.Key
	Value prop.Value
	Dir   CapDirection
	Flags CapFlag
}

func (c CapItem) has(f CapFlag) bool { return c.Flags&f != 0 }

// Bundle is a maximal run of CapItems that share a bundle index, split on
// items without CapInBundle set (spec.md §4.2 "delimited by items not
// marked IN_BUNDLE").
type Bundle struct {
	Items []CapItem
}

// splitBundles groups a flat caps array into bundles.
func splitBundles(caps []CapItem) []Bundle {
	var bundles []Bundle
	var cur []CapItem
	for i, c := range caps {
		if i > 0 && !c.has(CapInBundle) {
			bundles = append(bundles, Bundle{Items: cur})
			cur = nil
		}
		cur = append(cur, c)
	}
	if len(cur) > 0 {
		bundles = append(bundles, Bundle{Items: cur})
	}
	return bundles
}

// RegFlag mirrors FilterReg.flags, spec.md §3.
type RegFlag uint16

const (
	RegExplicitOnly RegFlag = 1 << iota
	RegMainThread
	RegReconfigureOutput
	RegScript
	RegMeta
	RegBlocking
)

// ConfigureMode is the mode argument to FilterReg.ConfigurePid, spec.md §4.5.
type ConfigureMode uint8

const (
	ConfigureConnect ConfigureMode = iota
	ConfigureReconfig
	ConfigureRemove
)

// FilterImpl is the set of function pointers a filter-type descriptor
// declares (spec.md §3 FilterReg, §6 filter-type registration). Grounded
// on processors.Processor's Process/Config interface, generalized from a
// single linear Process(*entry.Entry) call to the full filter-graph
// lifecycle (initialize/finalize/configure_pid/process/process_event).
type FilterImpl interface {
	Initialize(f *Filter) error
	Finalize(f *Filter)
	ConfigurePid(f *Filter, pid *PidInst, mode ConfigureMode) error
	Process(f *Filter) error
	// ProcessEvent returns true if the event is cancelled (propagation
	// stops), spec.md §4.10.
	ProcessEvent(f *Filter, evt *Event) bool
}

// FilterReg is the immutable, registry-held descriptor for a filter type
// (spec.md §3). One FilterReg is shared by every Filter instance created
// from it.
type FilterReg struct {
	Name     string
	Caps     []CapItem
	Args     string
	Flags    RegFlag
	Priority uint8
	Impl     FilterImpl

	bundlesOnce []Bundle
}

// Bundles lazily splits Caps into bundles and caches the result. FilterReg
// is immutable once registered so this is safe without locking.
func (r *FilterReg) Bundles() []Bundle {
	if r.bundlesOnce == nil {
		r.bundlesOnce = splitBundles(r.Caps)
	}
	return r.bundlesOnce
}

func (r *FilterReg) hasFlag(f RegFlag) bool { return r.Flags&f != 0 }

// HasOutputCap reports whether any bundle declares an OUTPUT (or
// INPUT_OUTPUT) capability item, a precondition for resolver candidacy
// (spec.md §4.3 step 2).
func (r *FilterReg) HasOutputCap() bool {
	for _, c := range r.Caps {
		if c.Dir == CapOutput || c.Dir == CapInputOutput {
			return true
		}
	}
	return false
}

// Registry is the session-wide table of known filter types, keyed by
// name. Grounded on processors.ProcessorSet's named-instance map,
// generalized to hold immutable type descriptors rather than live
// instances and backed by xsync's lock-striped map for concurrent
// resolver lookups (spec.md §4.3 walks the full registry per resolve).
type Registry struct {
	byName *xsync.MapOf[string, *FilterReg]
}

// NewRegistry returns an empty filter-type registry.
func NewRegistry() *Registry {
	return &Registry{byName: xsync.NewMapOf[string, *FilterReg]()}
}

// Register adds a filter type. Returns ErrInvalidConfiguration if the
// name is already registered.
func (r *Registry) Register(reg *FilterReg) error {
	_, loaded := r.byName.LoadOrStore(reg.Name, reg)
	if loaded {
		return ErrInvalidConfiguration
	}
	return nil
}

// Lookup returns the descriptor for name, or ErrFilterNotFound.
func (r *Registry) Lookup(name string) (*FilterReg, error) {
	reg, ok := r.byName.Load(name)
	if !ok {
		return nil, ErrFilterNotFound
	}
	return reg, nil
}

// Range calls fn for every registered filter type until fn returns false.
func (r *Registry) Range(fn func(*FilterReg) bool) {
	r.byName.Range(func(_ string, reg *FilterReg) bool {
		return fn(reg)
	})
}
