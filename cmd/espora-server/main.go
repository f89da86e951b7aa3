// Command espora-server exposes the ledger HTTP boundary from spec.md §6
// plus an EsporaAdmin gRPC health service (no binary in this repository
// queries it; espora-lb does not), wiring
// config, httpapi, ledger and internal/adminrpc together the way the
// teacher's cmd/server/main.go wires storage, engine and its own manual
// gRPC service.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/esporadb/espora/config"
	"github.com/esporadb/espora/httpapi"
	"github.com/esporadb/espora/internal/adminrpc"
	"github.com/esporadb/espora/ledger"
)

// defaultLimits mirrors the fixed five-account deployment from
// original_source/rinha-espora-server/src/main.rs; ESPORA_CONFIG's
// accounts list overrides these per id.
var defaultLimits = map[string]int64{
	"1": 100_000,
	"2": 80_000,
	"3": 1_000_000,
	"4": 10_000_000,
	"5": 500_000,
}

var flagHTTP = flag.String("http", "", "HTTP listen address (overrides PORT env)")
var flagGRPC = flag.String("grpc", ":9090", "admin gRPC listen address (empty to disable)")

func main() {
	flag.Parse()
	logger := log.New(os.Stderr, "espora-server: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	httpAddr := *flagHTTP
	if httpAddr == "" {
		httpAddr = cfg.Port
	}
	if httpAddr == "" {
		httpAddr = ":9999"
	} else if httpAddr[0] != ':' {
		httpAddr = ":" + httpAddr
	}

	state := &serverState{
		accounts: map[string]*ledger.Account{},
		started:  time.Now(),
	}

	for id, defaultLimit := range defaultLimits {
		limit := defaultLimit
		if l, ok := cfg.LimitFor(id); ok {
			limit = l
		}
		acct, err := ledger.OpenCached(cfg.AccountPath(id), limit, cfg.SyncPolicy)
		if err != nil {
			logger.Fatalf("open account %s: %v", id, err)
		}
		state.accounts[id] = acct
	}
	defer func() {
		for _, acct := range state.accounts {
			acct.Close()
		}
	}()

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc("*/30 * * * * *", state.verifyMirrors(logger)); err != nil {
		logger.Fatalf("schedule mirror check: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if *flagGRPC != "" {
		go serveAdminRPC(*flagGRPC, state, logger)
	}

	svc := httpapi.NewService(state.accounts, logger)
	mux := http.NewServeMux()
	svc.Routes(mux)

	logger.Printf("HTTP listening on %s", httpAddr)
	if err := http.ListenAndServe(httpAddr, mux); err != nil {
		logger.Fatalf("HTTP serve error: %v", err)
	}
}

// serverState tracks the small amount of process-wide state the admin
// RPC surface and the scheduled housekeeping job need.
type serverState struct {
	accounts    map[string]*ledger.Account
	started     time.Time
	appendCount atomic.Uint64
}

// verifyMirrors compares each cached account's newest entry, as returned
// by LastNTransactions(1), against its in-memory mirrored balance, warning
// on any drift — a cheap self-check, not a correctness requirement,
// grounded on internal/storage/scheduler.go's cron-driven housekeeping
// pattern. For a cached account LastNTransactions reads the in-memory
// ring, so both sides come from memory; the log file is not read.
func (s *serverState) verifyMirrors(logger *log.Logger) func() {
	return func() {
		for id, acct := range s.accounts {
			entries, err := acct.LastNTransactions(1)
			if err != nil {
				logger.Printf("mirror check account %s: %v", id, err)
				continue
			}
			if len(entries) == 0 {
				continue
			}
			s.appendCount.Add(1)

			tailBalance := entries[0].BalanceAfter
			mirrored, ok := acct.CachedBalance()
			if !ok {
				continue
			}
			if mirrored != tailBalance {
				logger.Printf("mirror check account %s: mirror drifted, cached=%d tail=%d", id, mirrored, tailBalance)
				continue
			}
			logger.Printf("mirror check account %s: consistent, balance %d", id, tailBalance)
		}
	}
}

// Ping implements adminrpc.Server.
func (s *serverState) Ping(context.Context, *adminrpc.PingRequest) (*adminrpc.PingResponse, error) {
	return &adminrpc.PingResponse{OK: true}, nil
}

// Stats implements adminrpc.Server.
func (s *serverState) Stats(context.Context, *adminrpc.StatsRequest) (*adminrpc.StatsResponse, error) {
	return &adminrpc.StatsResponse{
		OpenAccounts:  len(s.accounts),
		AppendCount:   s.appendCount.Load(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}, nil
}

func serveAdminRPC(addr string, state *serverState, logger *log.Logger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Printf("admin gRPC listen error: %v", err)
		return
	}
	encoding.RegisterCodec(adminrpc.JSONCodec{})
	gs := grpc.NewServer()
	adminrpc.Register(gs, state)
	logger.Printf("admin gRPC listening on %s", addr)
	if err := gs.Serve(lis); err != nil {
		logger.Printf("admin gRPC serve error: %v", err)
	}
}
