/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgconfig

import (
	"fmt"
	"strings"
)

// FilterSpec is one parsed CLI token of the form
// "filter_name:arg1=val1:arg2=val2", spec.md §6's "CLI surface".
// Grounded in style on config/parse.go's suffix-stripping token parsers
// (ParseRate, AppendDefaultPort), generalized from a single-value parse
// to a colon-delimited, repeated key=value token stream.
type FilterSpec struct {
	Name string
	Args map[string]string
	Src  string
	Dst  string
}

// ErrEmptyToken reports an empty filter token in a CLI argument list.
var ErrEmptyToken = fmt.Errorf("fgconfig: empty filter token")

// ParseFilterToken parses one "name:arg=val:arg2=val2" token. src=URI and
// dst=URI are recognized as ordinary args and also surfaced on the
// FilterSpec's Src/Dst fields for convenience, per spec.md §6.
func ParseFilterToken(tok string) (FilterSpec, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return FilterSpec{}, ErrEmptyToken
	}
	parts := strings.Split(tok, ":")
	spec := FilterSpec{Name: parts[0], Args: make(map[string]string)}
	if spec.Name == "" {
		return FilterSpec{}, ErrEmptyToken
	}
	for _, kv := range parts[1:] {
		if kv == "" {
			continue
		}
		k, v, found := strings.Cut(kv, "=")
		if !found {
			spec.Args[k] = ""
			continue
		}
		spec.Args[k] = v
		switch k {
		case "src":
			spec.Src = v
		case "dst":
			spec.Dst = v
		}
	}
	return spec, nil
}

// ParseGraphArgs parses a full CLI filter-graph description: one
// whitespace-separated token per filter, each in ParseFilterToken's
// "name:arg=val" form (spec.md §6 CLI surface). A standalone "src=URI" or
// "dst=URI" token is parsed like any other token, as a filter named
// "src=URI"; src and dst reach a filter only as its own args.
func ParseGraphArgs(args []string) ([]FilterSpec, error) {
	specs := make([]FilterSpec, 0, len(args))
	for _, a := range args {
		spec, err := ParseFilterToken(a)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
