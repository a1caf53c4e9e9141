/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fglog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerDropsBelowLevelFloor(t *testing.T) {
	var buf bytes.Buffer
	l := New("fgrun", WARN, &buf)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below floor, got %q", buf.String())
	}
	l.Error("should appear: %d", 42)
	if !strings.Contains(buf.String(), "should appear: 42") {
		t.Fatalf("expected error line present, got %q", buf.String())
	}
}

func TestScopedLoggerCarriesMsgID(t *testing.T) {
	var buf bytes.Buffer
	l := New("fgrun", DEBUG, &buf)
	child := l.With("decoder#1")
	child.Info("hello")
	if !strings.Contains(buf.String(), "decoder#1") {
		t.Fatalf("expected msgid decoder#1 present, got %q", buf.String())
	}
}
