// Package profile mounts the runtime profiler under /debug/pprof.
package profile

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
)

// Prefix is where the profiler is mounted.
const Prefix = "/debug/pprof"

// Register mounts the pprof endpoints on r. Named profiles (heap, goroutine,
// allocs, block, mutex, threadcreate) are served by the index handler.
func Register(r *mux.Router) {
	sub := r.PathPrefix(Prefix).Subrouter()
	sub.HandleFunc("/cmdline", pprof.Cmdline)
	sub.HandleFunc("/profile", pprof.Profile)
	sub.HandleFunc("/symbol", pprof.Symbol)
	sub.HandleFunc("/trace", pprof.Trace)
	sub.PathPrefix("/").HandlerFunc(pprof.Index)
}

// Handler returns a router serving only the profiler.
func Handler() http.Handler {
	r := mux.NewRouter()
	Register(r)
	return r
}
