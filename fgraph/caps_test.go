/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"testing"

	"github.com/gravwell/fgraph/prop"
)

var codecKey = prop.KeyName("codec")

func TestMatchInputBundleExcludedWithoutProperty(t *testing.T) {
	reg := &FilterReg{Name: "sink", Caps: []CapItem{
		{Key: codecKey, Value: prop.String("raw", prop.StringOwned), Dir: CapInput, Flags: CapExcluded},
	}}
	caps := NewPidCaps(nil)
	if !matchInputBundle(reg.Bundles()[0], caps) {
		t.Fatal("expected excluded-without-property to match")
	}
}

func TestMatchInputBundleRequiresValueEquality(t *testing.T) {
	m := prop.New()
	m.Set(codecKey, prop.String("h264", prop.StringOwned))
	reg := &FilterReg{Name: "dec", Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapInput},
	}}
	if !matchInputBundle(reg.Bundles()[0], NewPidCaps(m)) {
		t.Fatal("expected matching codec value to satisfy bundle")
	}

	m2 := prop.New()
	m2.Set(codecKey, prop.String("vp9", prop.StringOwned))
	if matchInputBundle(reg.Bundles()[0], NewPidCaps(m2)) {
		t.Fatal("expected mismatched codec value to fail bundle")
	}
}

func TestScoreOutputAgainstInputZeroesOnUnmatchedNonExcluded(t *testing.T) {
	srcOut := Bundle{Items: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapOutput},
	}}
	dstIn := Bundle{Items: []CapItem{
		{Key: codecKey, Value: prop.String("aac", prop.StringOwned), Dir: CapInput},
	}}
	if score := scoreOutputAgainstInput(srcOut, dstIn); score != 0 {
		t.Fatalf("expected zero score, got %d", score)
	}
}

func TestScoreOutputAgainstInputCountsMatches(t *testing.T) {
	srcOut := Bundle{Items: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapOutput},
	}}
	dstIn := Bundle{Items: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapInput},
	}}
	if score := scoreOutputAgainstInput(srcOut, dstIn); score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}

func TestBestBundleMatchPicksHighestScore(t *testing.T) {
	src := &FilterReg{Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapOutput},
	}}
	dstLow := &FilterReg{Priority: 1, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("vp9", prop.StringOwned), Dir: CapInput, Flags: CapOptional},
	}}
	dstHigh := &FilterReg{Priority: 1, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapInput},
	}}
	mLow, okLow := BestBundleMatch(src, dstLow)
	mHigh, okHigh := BestBundleMatch(src, dstHigh)
	if !okHigh || mHigh.score < 1 {
		t.Fatal("expected high match to score at least 1")
	}
	if okLow {
		t.Fatalf("expected the vp9 destination not to match an h264 source, got %+v", mLow)
	}
}
