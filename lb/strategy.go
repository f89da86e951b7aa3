// Package lb implements the load-balancing strategies used by
// cmd/espora-lb, modeled as a capability per spec.md §9: a Strategy
// exposes Pick(upstreams, request) and is selected once, statically, at
// process startup. Grounded on
// original_source/rinha-load-balancer/src/main.rs's AtomicUsize
// round-robin counter, generalized to an interface so a second strategy
// (PathHash) can be dispatched dynamically without the caller knowing
// which one it got.
package lb

import (
	"hash/fnv"
	"net/http"
	"sync/atomic"
)

// Strategy picks one upstream address from a non-empty slice for a given
// request.
type Strategy interface {
	Pick(upstreams []string, r *http.Request) string
}

// RoundRobin cycles through upstreams in order, one per call, via an
// atomic counter so it needs no lock.
type RoundRobin struct {
	counter atomic.Uint64
}

// Pick returns the next upstream in round-robin order.
func (rr *RoundRobin) Pick(upstreams []string, _ *http.Request) string {
	n := rr.counter.Add(1)
	return upstreams[int(n-1)%len(upstreams)]
}

// PathHash picks an upstream deterministically from the request path, so
// repeated requests to the same path land on the same upstream.
type PathHash struct{}

// Pick returns the upstream selected by FNV-1a hashing r.URL.Path modulo
// len(upstreams).
func (PathHash) Pick(upstreams []string, r *http.Request) string {
	h := fnv.New32a()
	h.Write([]byte(r.URL.Path))
	return upstreams[int(h.Sum32())%len(upstreams)]
}
