/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fgconfig loads session-level settings for the filter graph
// core from a gcfg (.ini-style) file, following config/loader.go's
// size-capped read-then-parse pattern, and parses the gpac-style inline
// filter CLI surface (spec.md §6), one "filter_name:arg1=val1:src=URI"
// token per filter.
package fgconfig

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/gravwell/gcfg"
)

const maxConfigSize int64 = 4 * 1024 * 1024

var (
	ErrConfigFileTooLarge = errors.New("fgconfig: config file is too large")
	ErrFailedFileRead     = errors.New("fgconfig: failed to read entire config file")
)

// Global is the [global] section of a session config file.
type Global struct {
	Workers         int
	LockFree        bool
	LockFreeCap     int
	MaxChainLen     int
	LooseConnect    bool
	Preferred       []string
	LogLevel        string
	LogFacility     string
}

// SessionConfig is the top-level gcfg document a session is built from.
type SessionConfig struct {
	Global Global
}

// LoadFile reads and parses a session config file, capping its size the
// way config/loader.go's LoadConfigFile does ("this is a MASSIVE config
// file" notwithstanding — the filter graph's own config is tiny, so the
// same conservative cap still comfortably covers it).
func LoadFile(path string) (*SessionConfig, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}

	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return nil, err
	}
	if n != fi.Size() {
		return nil, ErrFailedFileRead
	}
	return LoadBytes(bb.Bytes())
}

// LoadBytes parses a session config document from b.
func LoadBytes(b []byte) (*SessionConfig, error) {
	if int64(len(b)) > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}
	var cfg SessionConfig
	if err := gcfg.ReadStringInto(&cfg, string(b)); err != nil {
		return nil, err
	}
	return &cfg, nil
}
