package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Nash0810/weightsel/internal/logging"
)

// Upstream for manual runs: reports its name and how many requests it has
// served, so the dispatcher's weighted split can be checked with curl.
func main() {
	port := flag.Int("port", 8081, "listen port")
	name := flag.String("name", "", "backend name reported in responses (default test-<port>)")
	flag.Parse()

	if *name == "" {
		*name = fmt.Sprintf("test-%d", *port)
	}

	logger := logging.NewLogger(*name)
	var served atomic.Int64

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "backend": *name})
	})

	mux.HandleFunc("/delay", func(w http.ResponseWriter, r *http.Request) {
		// Simulate slow endpoint
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "delay_ms": 100, "backend": *name})
	})

	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "simulated error", "backend": *name})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n := served.Add(1)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get("X-Request-ID"),
			"served", n)

		writeJSON(w, http.StatusOK, map[string]any{
			"backend":    *name,
			"path":       r.URL.Path,
			"method":     r.Method,
			"request_id": r.Header.Get("X-Request-ID"),
			"served":     n,
		})
	})

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("test_server_listening", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
