// Command benchmark load-tests the gateway against a local mock upstream so
// latency numbers reflect the gateway itself, not a provider.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	unaryResp = []byte(`{"id":"bench-123","type":"message","role":"assistant","content":[{"type":"text","text":"Hello"}],"model":"bench-model","stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)

	streamEvents = []string{
		"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"bench-123\"}}\n\n",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Bench\"}}\n\n",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"mark\"}}\n\n",
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
	}
)

const benchConfig = `
default_model: bench
models:
  bench:
    display_name: Bench Model
    provider: anthropic
    model_id: bench-model
    base_url: http://127.0.0.1:9091
    api_key_env: BENCH_API_KEY
gateway:
  host: 127.0.0.1
  port: 8081
  timeout: 30
  enable_logging: false
`

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	flag.Parse()

	go startMockUpstream()

	fmt.Println("Building gateway...")
	buildCmd := exec.Command("go", "build", "-o", "bin/gateway", "./cmd/gateway")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build gateway: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0o644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	app := exec.Command("./bin/gateway", "-config", configFile)
	app.Env = append(os.Environ(), "BENCH_API_KEY=sk-bench")
	app.Stdout = os.Stdout
	app.Stderr = os.Stderr
	if err := app.Start(); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}
	defer func() {
		_ = app.Process.Kill()
	}()

	waitForReady(fmt.Sprintf("http://127.0.0.1:%d/health", appPort))

	body := fmt.Sprintf(`{"model":"bench","max_tokens":64,"stream":%t,"messages":[{"role":"user","content":"ping"}]}`, *stream)
	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("http://127.0.0.1:%d/v1/messages", appPort),
		Body:   []byte(body),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})

	attacker := vegeta.NewAttacker(vegeta.Timeout(10 * time.Second))
	pacer := vegeta.Rate{Freq: *rate, Per: time.Second}

	fmt.Printf("Attacking at %d req/s for %s (stream=%t)...\n", *rate, *duration, *stream)
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, pacer, *duration, "messages") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Printf("\nRequests:  %d\n", metrics.Requests)
	fmt.Printf("Success:   %.2f%%\n", metrics.Success*100)
	fmt.Printf("Mean:      %s\n", metrics.Latencies.Mean)
	fmt.Printf("P95:       %s\n", metrics.Latencies.P95)
	fmt.Printf("P99:       %s\n", metrics.Latencies.P99)
	fmt.Printf("Max:       %s\n", metrics.Latencies.Max)
	if len(metrics.Errors) > 0 {
		fmt.Printf("Errors:    %v\n", metrics.Errors)
	}
}

func startMockUpstream() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, ev := range streamEvents {
				fmt.Fprint(w, ev)
				flusher.Flush()
				time.Sleep(2 * time.Millisecond)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(unaryResp)
	})

	if err := http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux); err != nil {
		log.Fatalf("Mock upstream failed: %v", err)
	}
}

func waitForReady(url string) {
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Fatal("Gateway never became ready")
}
