/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package prop

import "testing"

func TestSetGetRoundTrip(t *testing.T) {
	m := New()
	k := KeyName("codec")
	m.Set(k, String("h264", StringOwned))
	v, ok := m.Get(k)
	if !ok {
		t.Fatal("expected to find key")
	}
	if s, _ := v.AsString(); s != "h264" {
		t.Fatalf("got %q", s)
	}
}

func TestFourCCKeyDoesNotCollideWithSameBytesName(t *testing.T) {
	m := New()
	fcc := MakeFourCC('c', 'o', 'd', 'c')
	m.Set(Key4CC(fcc), Int32(1))
	m.Set(KeyName(fcc.String()), Int32(2))
	if m.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", m.Len())
	}
}

func TestCopyForWriteIsIndependent(t *testing.T) {
	m := New()
	k := KeyName("x")
	m.Set(k, Int32(1))
	m.Publish()

	got1, _ := m.Get(k)

	cow := m.CopyForWrite()
	cow.Set(k, Int32(2))

	got2, _ := m.Get(k)
	if !got1.Equal(got2) {
		t.Fatal("publishing and copy-on-write must not mutate the original map")
	}
	cowVal, _ := cow.Get(k)
	if cowVal.Equal(got1) {
		t.Fatal("copy-for-write map should reflect the new value")
	}
}

func TestDualRefcountDestroyOnlyWhenBothZero(t *testing.T) {
	m := New() // rc=1
	m.RefPck() // pckRC=1

	if m.Unref() {
		t.Fatal("must not destroy while pckRC is still held")
	}
	if !m.UnrefPck() {
		t.Fatal("must destroy once both counts reach zero")
	}
}

func TestMergeDoesNotOverwriteExisting(t *testing.T) {
	dst := New()
	dst.Set(KeyName("a"), Int32(1))
	src := New()
	src.Set(KeyName("a"), Int32(99))
	src.Set(KeyName("b"), Int32(2))

	Merge(dst, src, nil)

	av, _ := dst.Get(KeyName("a"))
	if n, _ := av.AsInt32(); n != 1 {
		t.Fatalf("merge must not overwrite existing key, got %d", n)
	}
	bv, ok := dst.Get(KeyName("b"))
	if !ok {
		t.Fatal("merge must copy missing key")
	}
	if n, _ := bv.AsInt32(); n != 2 {
		t.Fatalf("got %d", n)
	}
}

func TestEqualIgnoresEnumerationOrder(t *testing.T) {
	a := New()
	a.Set(KeyName("x"), Int32(1))
	a.Set(KeyName("y"), Int32(2))

	b := New()
	b.Set(KeyName("y"), Int32(2))
	b.Set(KeyName("x"), Int32(1))

	if !Equal(a, b) {
		t.Fatal("maps with same entries in different order must be equal")
	}
}

func TestDeleteThenReindex(t *testing.T) {
	m := New()
	m.Set(KeyName("a"), Int32(1))
	m.Set(KeyName("b"), Int32(2))
	m.Set(KeyName("c"), Int32(3))

	m.Delete(KeyName("a"))
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries after delete, got %d", m.Len())
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := m.Get(KeyName(k)); !ok {
			t.Fatalf("expected %q to survive delete", k)
		}
	}
}
