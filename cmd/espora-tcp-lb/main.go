// Command espora-tcp-lb is a raw TCP passthrough proxy, grounded on
// original_source/rinha-load-balancer-tcp/src/main.rs's bidirectional
// io::copy. Unlike espora-lb it never parses HTTP; it simply forwards
// bytes between the accepted connection and one upstream chosen by
// round-robin.
package main

import (
	"io"
	"log"
	"net"
	"os"
	"sync/atomic"

	"github.com/esporadb/espora/config"
)

func main() {
	logger := log.New(os.Stderr, "espora-tcp-lb: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if len(cfg.Upstreams) == 0 {
		logger.Fatal("UPSTREAMS must name at least one upstream address")
	}

	addr := ":9999"
	if cfg.Port != "" {
		addr = ":" + cfg.Port
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("listen %s: %v", addr, err)
	}
	logger.Printf("listening on %s, upstreams=%v", addr, cfg.Upstreams)

	var counter atomic.Uint64
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Printf("accept error: %v", err)
			continue
		}
		n := counter.Add(1)
		upstream := cfg.Upstreams[int(n-1)%len(cfg.Upstreams)]
		go proxyConn(conn, upstream, logger)
	}
}

func proxyConn(client net.Conn, upstream string, logger *log.Logger) {
	defer client.Close()

	upstreamConn, err := net.Dial("tcp", upstream)
	if err != nil {
		logger.Printf("dial upstream %s: %v", upstream, err)
		return
	}
	defer upstreamConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(upstreamConn, client)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(client, upstreamConn)
		done <- struct{}{}
	}()
	<-done
}
