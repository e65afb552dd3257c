// Command loadtest drives the search service with a fixed set of queries
// and reports throughput, latency percentiles and cache effectiveness.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-queries queries.txt] [-concurrency 10] [-duration 30s]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var defaultQueries = []string{
	"mapa",
	"ortofoto",
	"cartografía topográfica",
	"carreteras",
	"red hidrográfica",
	"spatial:-10,5,35,45",
	"spatial:-2,1,40,43 mapa",
	"title:mapa -type:ortofoto",
}

type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 1<<16),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, resp *http.Response, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if resp.StatusCode/100 == 2 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if resp.Header.Get("X-Cache") == "hit" {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[resp.StatusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	queriesPath := flag.String("queries", "", "file with one query per line (default: built-in set)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results per query")
	flag.Parse()

	queries := defaultQueries
	if *queriesPath != "" {
		f, err := os.Open(*queriesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening queries: %v\n", err)
			os.Exit(1)
		}
		queries, err = readQueries(f)
		f.Close()
		if err != nil || len(queries) == 0 {
			fmt.Fprintf(os.Stderr, "no usable queries in %s: %v\n", *queriesPath, err)
			os.Exit(1)
		}
	}

	fmt.Println("=== Geo Metadata Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n\n", len(queries))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	stats := run(ctx, *baseURL, queries, *limit, *concurrency)
	if !report(os.Stdout, stats, *duration) {
		os.Exit(1)
	}
}

// readQueries reads non-blank lines.
func readQueries(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	return out, sc.Err()
}

func searchURL(base, q string, limit int) string {
	v := url.Values{}
	v.Set("q", q)
	v.Set("limit", fmt.Sprint(limit))
	return strings.TrimRight(base, "/") + "/api/v1/search?" + v.Encode()
}

func run(ctx context.Context, base string, queries []string, limit, concurrency int) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var wg sync.WaitGroup
	for w := range concurrency {
		wg.Go(func() {
			for i := w; ctx.Err() == nil; i++ {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL(base, queries[i%len(queries)], limit), nil)
				if err != nil {
					stats.Record(0, nil, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(time.Since(start), nil, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(time.Since(start), resp, nil)
			}
		})
	}
	wg.Wait()
	return stats
}

// report prints the summary and reports whether any request completed.
func report(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Errors:          %d\n", stats.failed.Load())
	if total == 0 {
		fmt.Fprintln(w, "\nWARNING: No requests completed. Is the service running?")
		return false
	}
	fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(stats.failed.Load())/float64(total)*100)
	fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
	fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	stats.mu.Lock()
	defer stats.mu.Unlock()
	latencies := slices.Clone(stats.latencies)
	slices.Sort(latencies)
	if len(latencies) > 0 {
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-5.0f %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.codes[code])
	}
	return true
}

// percentile uses the nearest-rank method over sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
