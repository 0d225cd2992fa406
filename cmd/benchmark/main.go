package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/txledger/internal/models"
	"github.com/shopspring/decimal"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	agents      int
	replayRate  float64
)

// Metrics
var (
	totalRequests uint64
	success201    uint64
	fail409       uint64 // dedup key reused with another payload
	fail503       uint64 // storage unavailable
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&agents, "agents", 1000, "Number of client agents")
	flag.Float64Var(&replayRate, "replay", 0, "Fraction of requests that resend the previous idempotency key")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(i, &wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(id int, wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	var lastKey string
	var lastBody []byte

	for seq := 0; time.Since(start) < duration; seq++ {
		key, body := lastKey, lastBody

		// Replays resend an earlier request unchanged
		if key == "" || rng.Float64() >= replayRate {
			key = fmt.Sprintf("bench-%d-%d-%d", id, seq, time.Now().UnixNano())
			body, _ = json.Marshal(newRequest(rng))
			lastKey, lastBody = key, body
		}

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transactions", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusServiceUnavailable:
			atomic.AddUint64(&fail503, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func newRequest(rng *rand.Rand) models.TransactionRequest {
	from := rng.Intn(agents) + 1

	// Hotspot: 90% of traffic goes to service 1
	to := rng.Intn(50) + 1
	if workload == "hotspot" && rng.Float32() < 0.90 {
		to = 1
	}

	typ := "DEPOSIT"
	if rng.Float32() < 0.2 {
		typ = "CREDIT"
	}

	var req models.TransactionRequest
	req.Type = typ
	req.From = models.RefPayload{Kind: "client", ID: fmt.Sprintf("client-%d", from)}
	req.To = models.RefPayload{Kind: "service", ID: fmt.Sprintf("service-%d", to)}
	req.Amount = randomAmount(rng)

	return req
}

// randomAmount is between 0.01 and 500.00.
func randomAmount(rng *rand.Rand) decimal.Decimal {
	return decimal.New(rng.Int63n(50000)+1, -2)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	f503 := atomic.LoadUint64(&fail503)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	conflictRate := 0.0
	if total > 0 {
		conflictRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"success_created":   s201,
		"conflicts":         f409,
		"conflict_rate_pct": conflictRate,
		"unavailable":       f503,
		"errors":            fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
