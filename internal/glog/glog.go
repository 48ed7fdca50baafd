// Package glog provides leveled, module-tagged logging:
// Infof/Warningf/Errorf plus a V-gated verbose path.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package glog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Module tags.
const (
	SmoduleStorage = "storage"
	SmoduleProxy   = "proxy"
	SmoduleSync    = "sync"
	SmoduleToken   = "token"
	SmoduleRPC     = "rpc"
)

var (
	verbosity int32
	std       = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

// SetVerbosity sets the global V-level; components check it via V()/FastV().
func SetVerbosity(v int) { atomic.StoreInt32(&verbosity, int32(v)) }

// Level is a verbosity-gated logger returned by V.
type Level bool

// V reports whether logging at the given verbosity level is enabled.
func V(level int) Level {
	return Level(int32(level) <= atomic.LoadInt32(&verbosity))
}

// FastV is the hot-path variant used in tight loops (CAS retries, WAL scans)
// where allocating a Level value per call is worth avoiding.
func FastV(level int, _module string) bool {
	return int32(level) <= atomic.LoadInt32(&verbosity)
}

func (l Level) Infof(format string, args ...interface{}) {
	if l {
		std.Output(2, "I "+fmt.Sprintf(format, args...))
	}
}

func Infof(format string, args ...interface{}) {
	std.Output(2, "I "+fmt.Sprintf(format, args...))
}

func Warningf(format string, args ...interface{}) {
	std.Output(2, "W "+fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	std.Output(2, "E "+fmt.Sprintf(format, args...))
}

// Fatalf logs and exits; used only at startup config-validation failures.
func Fatalf(format string, args ...interface{}) {
	std.Output(2, "F "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
