// Command espora-lb is an HTTP reverse proxy dispatching across the
// UPSTREAMS configured for this deployment via one of two strategies,
// grounded on original_source/rinha-load-balancer/src/main.rs's
// AtomicUsize round-robin proxy and generalized to an lb.Strategy per
// spec.md §9.
package main

import (
	"flag"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/esporadb/espora/config"
	"github.com/esporadb/espora/lb"
)

var flagStrategy = flag.String("strategy", "round-robin", "load balancing strategy: round-robin or path-hash")

func main() {
	flag.Parse()
	logger := log.New(os.Stderr, "espora-lb: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if len(cfg.Upstreams) == 0 {
		logger.Fatal("UPSTREAMS must name at least one upstream address")
	}

	var strategy lb.Strategy
	switch *flagStrategy {
	case "path-hash":
		strategy = lb.PathHash{}
	case "round-robin":
		strategy = &lb.RoundRobin{}
	default:
		logger.Fatalf("unknown strategy %q", *flagStrategy)
	}

	proxy := &httputil.ReverseProxy{
		Director: func(r *http.Request) {
			target := strategy.Pick(cfg.Upstreams, r)
			u, err := url.Parse("http://" + target)
			if err != nil {
				logger.Printf("parse upstream %q: %v", target, err)
				return
			}
			r.URL.Scheme = u.Scheme
			r.URL.Host = u.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Printf("proxy error for %s: %v", r.URL.Path, err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	addr := ":9999"
	if cfg.Port != "" {
		addr = ":" + cfg.Port
	}
	logger.Printf("listening on %s, strategy=%s, upstreams=%v", addr, *flagStrategy, cfg.Upstreams)
	if err := http.ListenAndServe(addr, proxy); err != nil {
		logger.Fatalf("serve error: %v", err)
	}
}
