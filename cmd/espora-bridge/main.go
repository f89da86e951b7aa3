// Command espora-bridge listens on a Unix domain socket and proxies each
// accepted connection to a single TCP upstream, grounded on
// original_source/axum-unix-socket/src/lib.rs and
// original_source/rinha-espora-embedded/src/main.rs's UNIX_SOCKET env var.
package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"

	"github.com/esporadb/espora/config"
)

var flagUpstream = flag.String("upstream", "", "TCP upstream address to bridge to (e.g. 127.0.0.1:9999)")

func main() {
	flag.Parse()
	logger := log.New(os.Stderr, "espora-bridge: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	socketPath := cfg.UnixSocket
	if socketPath == "" {
		logger.Fatal("UNIX_SOCKET must be set")
	}
	upstream := *flagUpstream
	if upstream == "" && len(cfg.Upstreams) > 0 {
		upstream = cfg.Upstreams[0]
	}
	if upstream == "" {
		logger.Fatal("an upstream must be given via -upstream or UPSTREAMS")
	}

	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		logger.Fatalf("listen on %s: %v", socketPath, err)
	}
	defer ln.Close()
	logger.Printf("bridging %s -> %s", socketPath, upstream)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Printf("accept error: %v", err)
			continue
		}
		go bridge(conn, upstream, logger)
	}
}

func bridge(client net.Conn, upstream string, logger *log.Logger) {
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
