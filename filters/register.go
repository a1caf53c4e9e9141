/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package filters

import "github.com/gravwell/fgraph/fgraph"

// RegisterBuiltins registers every filter type this package ships (fin,
// fout) into reg, the way a real deployment's registry would be populated
// from compiled-in filters before dynamically-loaded ones (spec.md §6 CLI
// surface: "populates the registry from compiled-in and dynamically-loaded
// filters").
func RegisterBuiltins(reg *fgraph.Registry) error {
	for _, r := range []*fgraph.FilterReg{finReg(), foutReg()} {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}
