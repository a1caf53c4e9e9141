/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import "github.com/gravwell/fgraph/prop"

// PidCaps is the subset of a PID's property map relevant to capability
// matching: every property currently set on the PID, addressable by key.
// Built from the PID's live PropMap snapshot at match time.
type PidCaps struct {
	m *prop.Map
}

func NewPidCaps(m *prop.Map) PidCaps { return PidCaps{m: m} }

func (p PidCaps) get(k prop.Key) (prop.Value, bool) {
	if p.m == nil {
		return prop.Value{}, false
	}
	return p.m.Get(k)
}

// matchInputBundle reports whether a PID's properties satisfy every INPUT
// item of bundle b, per spec.md §4.2's bundle semantics: an item is
// satisfied if the PID lacks the key and the item is EXCLUDED, or if the
// PID has the key and (value equality) XOR (EXCLUDED) holds — with any
// one item sharing a repeated key sufficing.
func matchInputBundle(b Bundle, pid PidCaps) bool {
	// Group items by key so a repeated key needs only one satisfied item.
	satisfied := make(map[string]bool)
	needed := make(map[string]bool)
	for _, item := range b.Items {
		if item.Dir != CapInput && item.Dir != CapInputOutput {
			continue
		}
		keyStr := item.Key.String()
		needed[keyStr] = true
		if satisfied[keyStr] {
			continue
		}
		val, has := pid.get(item.Key)
		excluded := item.has(CapExcluded)
		var ok bool
		switch {
		case !has && excluded:
			ok = true
		case has:
			ok = val.Equal(item.Value) != excluded
		default:
			ok = item.has(CapOptional)
		}
		if ok {
			satisfied[keyStr] = true
		}
	}
	for k := range needed {
		if !satisfied[k] {
			return false
		}
	}
	return true
}

// MatchInputBundle returns the index of the first input bundle of reg
// that accepts pid's properties, or -1 if none do (spec.md §4.3 step 1).
func MatchInputBundle(reg *FilterReg, pid PidCaps) int {
	for i, b := range reg.Bundles() {
		if matchInputBundle(b, pid) {
			return i
		}
	}
	return -1
}

// scoreOutputAgainstInput scores src output bundle against dst input
// bundle per spec.md §4.2: the count of output caps with a matching input
// cap; any non-excluded unmatched output cap zeroes the whole bundle.
func scoreOutputAgainstInput(srcOut, dstIn Bundle) int {
	score := 0
	for _, oc := range srcOut.Items {
		if oc.Dir != CapOutput && oc.Dir != CapInputOutput {
			continue
		}
		matched := false
		var foundKey bool
		for _, ic := range dstIn.Items {
			if ic.Dir != CapInput && ic.Dir != CapInputOutput {
				continue
			}
			if ic.Key != oc.Key {
				continue
			}
			foundKey = true
			if ic.Value.Equal(oc.Value) != ic.has(CapExcluded) {
				matched = true
				break
			}
		}
		if matched {
			score++
			continue
		}
		if !foundKey && oc.has(CapOptional) {
			continue
		}
		if !oc.has(CapExcluded) {
			return 0
		}
	}
	return score
}

// bundleMatch is one candidate (bundle index, score) pair.
type bundleMatch struct {
	srcIdx, dstIdx int
	score          int
}

// BestBundleMatch finds the highest-scoring (source output bundle,
// destination input bundle) pair between two registries, breaking ties by
// destination priority (spec.md §4.2 "ties broken by registry
// priority"). Reports ok=false if every pair scores zero.
func BestBundleMatch(src, dst *FilterReg) (m bundleMatch, ok bool) {
	srcBundles := src.Bundles()
	dstBundles := dst.Bundles()
	best := bundleMatch{srcIdx: -1, dstIdx: -1, score: -1}
	for si, sb := range srcBundles {
		if !bundleHasOutput(sb) {
			continue
		}
		for di, db := range dstBundles {
			if !bundleHasInput(db) {
				continue
			}
			score := scoreOutputAgainstInput(sb, db)
			if score <= 0 {
				continue
			}
			if score > best.score ||
				(score == best.score && dst.Priority > src.Priority) {
				best = bundleMatch{srcIdx: si, dstIdx: di, score: score}
			}
		}
	}
	if best.score < 0 {
		return bundleMatch{}, false
	}
	return best, true
}

func bundleHasOutput(b Bundle) bool {
	for _, c := range b.Items {
		if c.Dir == CapOutput || c.Dir == CapInputOutput {
			return true
		}
	}
	return false
}

func bundleHasInput(b Bundle) bool {
	for _, c := range b.Items {
		if c.Dir == CapInput || c.Dir == CapInputOutput {
			return true
		}
	}
	return false
}
