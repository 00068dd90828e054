package aggregate

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/wesleyorama2/loadreport/internal/loadtest/httpclient"
	"github.com/wesleyorama2/loadreport/internal/loadtest/report"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestAggregator() (*Aggregator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	return New(cfg), clock
}

func TestAggregator_Empty(t *testing.T) {
	agg, _ := newTestAggregator()

	if agg.HasHistory() {
		t.Error("HasHistory() = true for an empty aggregator")
	}

	totals := agg.Totals()
	if totals != (report.Totals{}) {
		t.Errorf("Totals() = %+v, want zero value", totals)
	}
	if got := agg.PercentileAt(0.5); got != 0 {
		t.Errorf("PercentileAt(0.5) = %v, want 0", got)
	}
	if got := agg.Errors(); len(got) != 0 {
		t.Errorf("Errors() = %v, want empty", got)
	}
}

func TestAggregator_Totals(t *testing.T) {
	agg, clock := newTestAggregator()

	agg.RecordSuccess("GET", "/", 10*time.Millisecond)
	agg.RecordSuccess("GET", "/shop", 30*time.Millisecond)
	agg.RecordFailure("GET", "/shop", 50*time.Millisecond, errors.New("boom"))
	agg.RecordSuccess("GET", "/", 2*time.Millisecond)

	clock.Advance(2 * time.Second)
	agg.Stop()
	clock.Advance(time.Hour)

	if !agg.HasHistory() {
		t.Fatal("HasHistory() = false after records")
	}

	totals := agg.Totals()
	if totals.Requests != 4 {
		t.Errorf("Requests = %d, want 4", totals.Requests)
	}
	if totals.Failures != 1 {
		t.Errorf("Failures = %d, want 1", totals.Failures)
	}
	if totals.AvgResponseMs != 23 {
		t.Errorf("AvgResponseMs = %v, want 23", totals.AvgResponseMs)
	}
	if totals.MinResponseMs != 2 {
		t.Errorf("MinResponseMs = %v, want 2", totals.MinResponseMs)
	}
	if totals.MaxResponseMs != 50 {
		t.Errorf("MaxResponseMs = %v, want 50", totals.MaxResponseMs)
	}
	// Elapsed is frozen at Stop
	if totals.RequestsPerSecond != 2 {
		t.Errorf("RequestsPerSecond = %v, want 2", totals.RequestsPerSecond)
	}
	if agg.Elapsed() != 2*time.Second {
		t.Errorf("Elapsed() = %v, want 2s", agg.Elapsed())
	}
}

func TestAggregator_StopIsIdempotent(t *testing.T) {
	agg, clock := newTestAggregator()
	agg.RecordSuccess("GET", "/", time.Millisecond)

	clock.Advance(time.Second)
	agg.Stop()
	clock.Advance(time.Second)
	agg.Stop()

	if agg.Elapsed() != time.Second {
		t.Errorf("Elapsed() = %v, want 1s", agg.Elapsed())
	}
}

func TestAggregator_Percentiles(t *testing.T) {
	agg, _ := newTestAggregator()

	for i := 1; i <= 100; i++ {
		agg.RecordSuccess("GET", "/", time.Duration(i)*time.Millisecond)
	}

	tests := []struct {
		fraction float64
		want     float64
	}{
		{0.5, 50},
		{0.9, 90},
		{0.99, 99},
		{0.9999, 100},
	}

	for _, tt := range tests {
		got := agg.PercentileAt(tt.fraction)
		// HDR histogram with 3 significant figures
		if math.Abs(got-tt.want) > tt.want*0.01 {
			t.Errorf("PercentileAt(%v) = %v, want ~%v", tt.fraction, got, tt.want)
		}
	}

	var prev float64
	for _, f := range report.Fractions {
		got := agg.PercentileAt(f)
		if got < prev {
			t.Errorf("PercentileAt(%v) = %v, smaller than previous %v", f, got, prev)
		}
		prev = got
	}
}

func TestAggregator_Errors(t *testing.T) {
	agg, _ := newTestAggregator()

	shopErr := &httpclient.HTTPError{StatusCode: 500, Path: "/shop"}
	agg.RecordFailure("GET", "/shop", time.Millisecond, shopErr)
	agg.RecordFailure("GET", "/", time.Millisecond, errors.New("connection refused"))
	agg.RecordFailure("GET", "/shop", time.Millisecond, shopErr)
	agg.RecordFailure("GET", "/shop", time.Millisecond, shopErr)
	agg.RecordFailure("GET", "/", time.Millisecond, nil)

	got := agg.Errors()
	want := []report.ErrorEntry{
		{
			Key:         "GET /shop: HTTPError: 500 Internal Server Error for url: /shop",
			Method:      "GET",
			Name:        "/shop",
			Occurrences: 3,
			Error:       "HTTPError: 500 Internal Server Error for url: /shop",
		},
		{
			Key:         "GET /: connection refused",
			Method:      "GET",
			Name:        "/",
			Occurrences: 1,
			Error:       "connection refused",
		},
		{
			Key:         "GET /: unknown error",
			Method:      "GET",
			Name:        "/",
			Occurrences: 1,
			Error:       "unknown error",
		},
	}

	if len(got) != len(want) {
		t.Fatalf("Errors() returned %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Errors()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	var sum int64
	for _, e := range got {
		sum += e.Occurrences
	}
	if sum != agg.Totals().Failures {
		t.Errorf("error occurrences %d != failures %d", sum, agg.Totals().Failures)
	}
}

func TestAggregator_Endpoints(t *testing.T) {
	agg, _ := newTestAggregator()

	agg.RecordSuccess("GET", "/shop", 10*time.Millisecond)
	agg.RecordFailure("GET", "/shop", 30*time.Millisecond, errors.New("boom"))
	agg.RecordSuccess("GET", "/", 5*time.Millisecond)

	eps := agg.Endpoints()
	if len(eps) != 2 {
		t.Fatalf("Endpoints() returned %d entries, want 2", len(eps))
	}

	shop := eps["/shop"]
	if shop.Requests != 2 || shop.Failures != 1 || shop.MeanMs != 20 || shop.Method != "GET" {
		t.Errorf("/shop = %+v", shop)
	}
	home := eps["/"]
	if home.Requests != 1 || home.Failures != 0 || home.MeanMs != 5 {
		t.Errorf("/ = %+v", home)
	}
}

func TestAggregator_ClampsOutOfRange(t *testing.T) {
	agg, _ := newTestAggregator()

	agg.RecordSuccess("GET", "/", 0)
	agg.RecordSuccess("GET", "/", 2*time.Hour)

	totals := agg.Totals()
	if totals.MinResponseMs != 0 {
		t.Errorf("MinResponseMs = %v, want 0", totals.MinResponseMs)
	}
	if totals.MaxResponseMs != float64(2*time.Hour/time.Millisecond) {
		t.Errorf("MaxResponseMs = %v, want exact max", totals.MaxResponseMs)
	}
	if p := agg.PercentileAt(0.9999); p > 3600000*1.01 {
		t.Errorf("PercentileAt(0.9999) = %v, want clamped to 1h", p)
	}
}

func TestAggregator_Concurrent(t *testing.T) {
	agg := New(Config{})

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if i%10 == 0 {
					agg.RecordFailure("GET", "/", time.Millisecond, errors.New("boom"))
				} else {
					agg.RecordSuccess("GET", "/", time.Duration(i)*time.Microsecond)
				}
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_ = agg.Totals()
				_ = agg.PercentileAt(0.95)
			}
		}
	}()

	wg.Wait()
	close(done)

	totals := agg.Totals()
	if totals.Requests != workers*perWorker {
		t.Errorf("Requests = %d, want %d", totals.Requests, workers*perWorker)
	}
	if totals.Failures != workers*perWorker/10 {
		t.Errorf("Failures = %d, want %d", totals.Failures, workers*perWorker/10)
	}
	errs := agg.Errors()
	if len(errs) != 1 || errs[0].Occurrences != totals.Failures {
		t.Errorf("Errors() = %+v", errs)
	}
}
