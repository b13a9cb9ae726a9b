package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/crm-enricher/internal/mockgemini"
)

func main() {
	addr := defaultString("MOCK_GEMINI_ADDR", ":8090")
	status := defaultString("MOCK_GEMINI_STATUS", "200")
	text := defaultString("MOCK_GEMINI_TEXT", mockgemini.DefaultText)
	delay := defaultString("MOCK_GEMINI_DELAY", "0s")

	fs := flag.NewFlagSet("mock-gemini", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&status, "status", status, "HTTP status returned for every request (also supports env: MOCK_GEMINI_STATUS)")
	fs.StringVar(&text, "text", text, "Candidate text on success, error message otherwise")
	fs.StringVar(&delay, "delay", delay, "Delay before each reply, e.g. 2s")
	_ = fs.Parse(os.Args[1:])

	code, err := strconv.Atoi(status)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid status %q: %v\n", status, err)
		os.Exit(2)
	}
	d, err := time.ParseDuration(delay)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid delay %q: %v\n", delay, err)
		os.Exit(2)
	}

	srv := mockgemini.New()
	srv.SetDefault(mockgemini.Response{Status: code, Text: text, Delay: d})

	_, _ = fmt.Fprintf(os.Stdout, "mock-gemini listening on %s (status=%d delay=%s)\n", addr, code, d)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
