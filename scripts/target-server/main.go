// Command target-server serves the default task paths locally so a run can
// be tried without hitting a real site:
//
//	go run ./scripts/target-server --addr :8080 --fail-ratio 0.1
//	loadreport run --host http://localhost:8080 --duration 20s
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadreport/internal/logging"
)

func main() {
	addr := pflag.String("addr", ":8080", "Listen address")
	failRatio := pflag.Float64("fail-ratio", 0.05, "Fraction of /services requests answered with 500")
	maxDelay := pflag.Duration("max-delay", 200*time.Millisecond, "Upper bound of the random response delay")
	pflag.Parse()

	logger, cleanup, err := logging.New(logging.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	var (
		mu  sync.Mutex
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	)
	jitter := func() (time.Duration, float64) {
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Int63n(int64(*maxDelay) + 1)), rng.Float64()
	}

	page := func(failing bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			delay, roll := jitter()
			time.Sleep(delay)
			if failing && roll < *failRatio {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<html><body>%s</body></html>", r.URL.Path)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/shop", page(false))
	mux.HandleFunc("/services", page(true))
	mux.HandleFunc("/contact-us", page(false))
	mux.HandleFunc("/{$}", page(false))

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	logger.Info("starting target server",
		zap.String("addr", *addr),
		zap.Float64("failRatio", *failRatio),
		zap.Duration("maxDelay", *maxDelay))

	if err := server.ListenAndServe(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}
