/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

// chainCandidate is one fully-specified path the resolver considered:
// the ordered registries to instantiate plus its selection weight
// (spec.md §4.3 step 3: "prefer the shortest; on tie, prefer the highest
// total weight").
type chainCandidate struct {
	regs   []*FilterReg
	weight int
}

// ResolveLink implements spec.md §4.3's resolve_link: find a chain of
// filter types connecting srcPid's capabilities to dstReg's accepted
// input bundle. Returns the ordered registries to instantiate (the chain
// head first), or ErrNoChain.
//
// This algorithm has no analog in the teacher repo (gravwell's ingesters
// wire a fixed, statically-configured processor chain rather than
// resolving one at connect time) — grounded in *style* only: depth-first
// recursion with an explicit visited-stack, mirroring the loop-avoidance
// idiom processors.ProcessorSet uses when chasing named "next processor"
// references, generalized here to search rather than simple lookup.
func (s *Session) ResolveLink(srcPid *Pid, dstFilter *Filter) ([]*FilterReg, error) {
	// Callers only reach here once a direct MatchInputBundle(dstFilter.Reg,
	// srcPid.Caps()) has already failed (dispatch.go's pid_init): a direct
	// accept-gate here would immediately re-fail every call. The
	// destination-accept check belongs on the final hop of a candidate
	// chain, performed below via BestBundleMatch(..., dstFilter.Reg).
	excluded := map[string]bool{srcPid.Filter.Reg.Name: true}
	for name := range srcPid.Filter.Blacklisted {
		excluded[name] = true
	}
	for name := range srcPid.AdaptersBlacklist {
		excluded[name] = true
	}

	var candidates []chainCandidate
	srcCaps := srcPid.Caps()

	s.Registry.Range(func(r *FilterReg) bool {
		if excluded[r.Name] {
			return true
		}
		if r.hasFlag(RegExplicitOnly) || !r.HasOutputCap() || r.Impl == nil {
			return true
		}

		// Every chain starts with a registry whose input accepts srcPid.
		if MatchInputBundle(r, srcCaps) < 0 {
			return true
		}

		// One-hop: R's input accepts srcPid directly, and R's output
		// matches dstFilter's chosen input bundle.
		if MatchInputBundle(r, srcCaps) >= 0 {
			if m, ok := BestBundleMatch(r, dstFilter.Reg); ok {
				weight := int(255-r.Priority) + m.score
				candidates = append(candidates, chainCandidate{
					regs:   []*FilterReg{r},
					weight: weight,
				})
				return true
			}
		}

		// Recursive: chase chains starting from R.
		if chain, weight, ok := s.resolveChain(r, srcCaps, dstFilter, map[string]bool{r.Name: true}, 1); ok {
			full := append([]*FilterReg{r}, chain...)
			candidates = append(candidates, chainCandidate{regs: full, weight: weight})
		}
		return true
	})

	if len(candidates) == 0 {
		return nil, ErrNoChain
	}

	best := s.pickBestChain(candidates)
	if s.maxChainLen > 0 && len(best.regs) > s.maxChainLen {
		return nil, ErrChainTooDeep
	}
	return best.regs, nil
}

// resolveChain recursively searches for a path from r's output to
// dstFilter's input, refusing to revisit any registry already on the
// stack (spec.md §4.3 "refuse loops ... avoid re-exploring").
func (s *Session) resolveChain(r *FilterReg, srcCaps PidCaps, dstFilter *Filter, stack map[string]bool, depth int) (chain []*FilterReg, weight int, ok bool) {
	if s.maxChainLen > 0 && depth >= s.maxChainLen {
		return nil, 0, false
	}

	var best chainCandidate
	found := false

	s.Registry.Range(func(next *FilterReg) bool {
		if stack[next.Name] || next.hasFlag(RegExplicitOnly) || !next.HasOutputCap() || next.Impl == nil {
			return true
		}
		m, ok := BestBundleMatch(r, next)
		if !ok {
			return true
		}
		_ = m
		// next itself bridges to dstFilter.
		if finalMatch, ok := BestBundleMatch(next, dstFilter.Reg); ok {
			w := int(255-next.Priority) + finalMatch.score
			if !found || len(best.regs) > 1 || w > best.weight {
				best = chainCandidate{regs: []*FilterReg{next}, weight: w}
				found = true
			}
		}
		nextStack := make(map[string]bool, len(stack)+1)
		for k := range stack {
			nextStack[k] = true
		}
		nextStack[next.Name] = true
		if sub, w, ok := s.resolveChain(next, srcCaps, dstFilter, nextStack, depth+1); ok {
			full := append([]*FilterReg{next}, sub...)
			if !found || len(full) < len(best.regs) || (len(full) == len(best.regs) && w > best.weight) {
				best = chainCandidate{regs: full, weight: w}
				found = true
			}
		}
		return true
	})

	return best.regs, best.weight, found
}

// pickBestChain applies spec.md §4.3 step 3's tie-breaking: shortest
// first, then highest weight, then an unconditional preferred-registry
// override (Open Question resolved in DESIGN.md: preferred registry wins
// outright regardless of length/weight once it appears anywhere in a
// candidate chain).
func (s *Session) pickBestChain(candidates []chainCandidate) chainCandidate {
	for _, c := range candidates {
		for _, r := range c.regs {
			if s.preferredRegistries[r.Name] {
				return c
			}
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.regs) < len(best.regs) ||
			(len(c.regs) == len(best.regs) && c.weight > best.weight) {
			best = c
		}
	}
	return best
}
