/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command fgrun is the filter graph core's CLI front end (spec.md §6 "CLI
// surface"): one "filter_name:arg1=val1:arg2=val2" token per filter, with
// src/dst given as filter args (or through -i/-o), instantiating a
// session, populating its registry, and running the task pool until every
// sink reports done. A standalone "src=URI" or "dst=URI" token is parsed
// as a filter name, not as a URI. Grounded on singleFile/main.go's flag-parse-then-run
// shape, generalized from a single fixed ingest pipeline to an arbitrary
// filter chain built from the parsed tokens.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gravwell/fgraph/fgconfig"
	"github.com/gravwell/fgraph/fglog"
	"github.com/gravwell/fgraph/fgraph"
	"github.com/gravwell/fgraph/filters"
)

var (
	cfgFile  = flag.String("c", "", "Session config file (gcfg/.ini format)")
	inFile   = flag.String("i", "", "Default src=URI for the first filter missing one")
	outFile  = flag.String("o", "", "Default dst=URI for the last filter missing one")
	noBlock  = flag.Bool("no-block", false, "Enable loose connect (same as the config file's LooseConnect)")
	threads  = flag.Int("threads", 0, "Worker count (0: use config file or NumCPU)")
	logLevel = flag.String("log-level", "INFO", "Log level: OFF, DEBUG, INFO, WARN, ERROR, CRITICAL")
)

func main() {
	flag.Parse()

	specs, err := fgconfig.ParseGraphArgs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fgrun: %v\n", err)
		os.Exit(2)
	}
	if len(specs) == 0 {
		fmt.Fprintln(os.Stderr, "fgrun: usage: fgrun [options] filter_name:arg1=val1:src=URI ... filter_name:dst=URI")
		os.Exit(2)
	}
	if *inFile != "" && specs[0].Src == "" {
		specs[0].Src = *inFile
		specs[0].Args["src"] = *inFile
	}
	if *outFile != "" && specs[len(specs)-1].Dst == "" {
		specs[len(specs)-1].Dst = *outFile
		specs[len(specs)-1].Args["dst"] = *outFile
	}

	var sessCfg fgconfig.SessionConfig
	if *cfgFile != "" {
		c, err := fgconfig.LoadFile(*cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fgrun: failed to load config %s: %v\n", *cfgFile, err)
			os.Exit(2)
		}
		sessCfg = *c
	}

	level := levelFromString(*logLevel)
	if sessCfg.Global.LogLevel != "" {
		level = levelFromString(sessCfg.Global.LogLevel)
	}
	log := fglog.New("fgrun", level)

	numWorkers := *threads
	if numWorkers <= 0 {
		numWorkers = sessCfg.Global.Workers
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	reg := fgraph.NewRegistry()
	if err := filters.RegisterBuiltins(reg); err != nil {
		log.Error("failed to register builtin filters: %v", err)
		os.Exit(1)
	}

	var opts []fgraph.SessionOption
	if sessCfg.Global.MaxChainLen > 0 {
		opts = append(opts, fgraph.WithMaxChainLen(sessCfg.Global.MaxChainLen))
	}
	if sessCfg.Global.LockFree {
		opts = append(opts, fgraph.WithLockFreeQueues(sessCfg.Global.LockFreeCap))
	}
	if len(sessCfg.Global.Preferred) > 0 {
		opts = append(opts, fgraph.WithPreferredRegistries(sessCfg.Global.Preferred...))
	}
	if *noBlock || sessCfg.Global.LooseConnect {
		opts = append(opts, fgraph.WithLooseConnect())
	}

	sess := fgraph.NewSession(reg, numWorkers, opts...)
	defer sess.Stop()

	for _, spec := range specs {
		f, err := sess.AddFilterArgs(spec.Name, spec.Name+"#1", spec.Args)
		if err != nil {
			log.Error("failed to add filter %s: %v", spec.Name, err)
			os.Exit(exitCodeFor(err))
		}
		log.With(f.ID).Debug("added filter %s (%s)", spec.Name, f.ID)
	}

	// The scheduler runs pid_init/configure_pid/process entirely off the
	// worker pool once filters are added; fgrun just waits for every
	// source's output PIDs to observe EOS. Since source filters (fin) send
	// their own EOS command packet once their file is exhausted, polling
	// HasSeenEOS here is sufficient for a CLI driver with no interactive
	// control surface.
	waitForCompletion(sess)

	if lerr := sess.LastProcessError(); lerr != nil {
		log.Error("session completed with last_process_error: %v", lerr)
		os.Exit(1)
	}
	if lerr := sess.LastConnectError(); lerr != nil {
		log.Error("session completed with last_connect_error: %v", lerr)
		os.Exit(1)
	}
}

// waitForCompletion polls until every filter's output PIDs have seen EOS,
// or there is nothing left to wait on. A CLI run has no external driver to
// signal shutdown, so this loop is the entire "run the task pool until all
// sinks report done" behavior of spec.md §6.
func waitForCompletion(sess *fgraph.Session) {
	const pollInterval = 20 * time.Millisecond
	const idleLimit = 50 // ~1s of no progress after every source is done

	idle := 0
	for idle < idleLimit {
		time.Sleep(pollInterval)
		if allSourcesDone(sess) {
			idle++
		} else {
			idle = 0
		}
	}
}

func allSourcesDone(sess *fgraph.Session) bool {
	done := true
	for _, f := range sess.Filters() {
		for _, pid := range f.OutputPids() {
			if !pid.HasSeenEOS {
				done = false
			}
		}
	}
	return done
}

func levelFromString(s string) fglog.Level {
	switch s {
	case "OFF":
		return fglog.OFF
	case "DEBUG":
		return fglog.DEBUG
	case "WARN":
		return fglog.WARN
	case "ERROR":
		return fglog.ERROR
	case "CRITICAL":
		return fglog.CRITICAL
	default:
		return fglog.INFO
	}
}

// exitCodeFor maps the error taxonomy of spec.md §7 onto a non-zero
// process exit status, coarse-grained by category rather than one code
// per sentinel.
func exitCodeFor(err error) int {
	switch {
	case err == fgraph.ErrBadParam, err == fgraph.ErrNotSupported,
		err == fgraph.ErrProfileNotSupported, err == fgraph.ErrRequiresNewInstance:
		return 2
	case err == fgraph.ErrOutOfMemory, err == fgraph.ErrIO,
		err == fgraph.ErrFilterNotFound, err == fgraph.ErrURL:
		return 3
	default:
		return 1
	}
}
