/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgconfig

import "testing"

func TestParseFilterTokenExtractsSrcDst(t *testing.T) {
	spec, err := ParseFilterToken("fileout:src=in.mp4:dst=out.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Name != "fileout" {
		t.Fatalf("expected name fileout, got %q", spec.Name)
	}
	if spec.Src != "in.mp4" || spec.Dst != "out.mp4" {
		t.Fatalf("expected src/dst extracted, got %+v", spec)
	}
}

func TestParseFilterTokenRejectsEmpty(t *testing.T) {
	if _, err := ParseFilterToken(""); err != ErrEmptyToken {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := ParseFilterToken(":arg=1"); err != ErrEmptyToken {
		t.Fatalf("expected ErrEmptyToken for missing name, got %v", err)
	}
}

func TestParseFilterTokenHandlesBareFlag(t *testing.T) {
	spec, err := ParseFilterToken("reframer:nocopy")
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := spec.Args["nocopy"]; !ok || v != "" {
		t.Fatalf("expected bare flag nocopy with empty value, got %q ok=%v", v, ok)
	}
}

func TestParseGraphArgsParsesMultipleFilters(t *testing.T) {
	specs, err := ParseGraphArgs([]string{"filein:src=a.ts", "reframer", "fileout:dst=b.ts"})
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	if specs[0].Src != "a.ts" || specs[2].Dst != "b.ts" {
		t.Fatalf("expected src/dst on first/last filters, got %+v", specs)
	}
}
