// Package driver runs simulated users that pick weighted tasks and pause
// between them.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TaskFunc is one unit of user behavior. It must return promptly once ctx is
// done.
type TaskFunc func(ctx context.Context)

// Task is a weighted user behavior.
type Task struct {
	Name   string
	Weight int
	Fn     TaskFunc
}

// StopHandler runs once after every user stopped.
type StopHandler func() error

// Config contains configuration for a Driver.
type Config struct {
	// Users is the number of simulated users
	Users int

	// SpawnRate is the number of users started per second (0 = all at once)
	SpawnRate float64

	// Duration bounds the run (0 = until the context is cancelled)
	Duration time.Duration

	// WaitMin and WaitMax bound the think time after each task
	WaitMin time.Duration
	WaitMax time.Duration

	// Seed makes task selection and think time reproducible (0 = time based)
	Seed int64

	// Logger receives lifecycle messages (default: no-op)
	Logger *zap.Logger
}

// Stats describes a run in progress or a completed run.
type Stats struct {
	UsersSpawned int
	ActiveUsers  int
	Iterations   int64
	TaskCounts   map[string]int64
}

// Driver owns the simulated users of one run.
type Driver struct {
	config      Config
	tasks       []Task
	totalWeight int
	logger      *zap.Logger

	spawned    atomic.Int32
	active     atomic.Int32
	iterations atomic.Int64
	taskCounts []atomic.Int64

	stopMu       sync.Mutex
	stopHandlers []StopHandler

	ran atomic.Bool
}

// New creates a driver for tasks.
func New(cfg Config, tasks ...Task) (*Driver, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("at least one task is required")
	}
	if cfg.Users < 1 {
		return nil, fmt.Errorf("users must be at least 1, got %d", cfg.Users)
	}
	if cfg.SpawnRate < 0 {
		return nil, fmt.Errorf("spawn rate cannot be negative")
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("duration cannot be negative")
	}
	if cfg.WaitMin < 0 || cfg.WaitMax < cfg.WaitMin {
		return nil, fmt.Errorf("invalid wait time range [%v, %v]", cfg.WaitMin, cfg.WaitMax)
	}

	total := 0
	for i, t := range tasks {
		if t.Fn == nil {
			return nil, fmt.Errorf("task %d (%s) has no function", i, t.Name)
		}
		if t.Weight <= 0 {
			return nil, fmt.Errorf("task %d (%s) must have a positive weight, got %d", i, t.Name, t.Weight)
		}
		total += t.Weight
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Driver{
		config:      cfg,
		tasks:       append([]Task(nil), tasks...),
		totalWeight: total,
		logger:      logger,
		taskCounts:  make([]atomic.Int64, len(tasks)),
	}, nil
}

// OnStop registers a handler invoked after the users stopped. Handlers run
// synchronously, once, in registration order.
func (d *Driver) OnStop(h StopHandler) {
	d.stopMu.Lock()
	defer d.stopMu.Unlock()
	d.stopHandlers = append(d.stopHandlers, h)
}

// Run spawns the users and blocks until the duration elapsed or ctx is
// cancelled, then runs the stop handlers. Cancellation is not an error; the
// returned error joins the stop handler failures.
func (d *Driver) Run(ctx context.Context) error {
	if !d.ran.CompareAndSwap(false, true) {
		return fmt.Errorf("driver already ran")
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d.config.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.config.Duration)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var limiter *rate.Limiter
	if d.config.SpawnRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.config.SpawnRate), 1)
	}

	d.logger.Info("spawning users",
		zap.Int("users", d.config.Users),
		zap.Float64("spawnRate", d.config.SpawnRate),
		zap.Duration("duration", d.config.Duration))

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < d.config.Users; i++ {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}

		rng := rand.New(rand.NewSource(d.seed(i)))
		d.spawned.Add(1)
		g.Go(func() error {
			d.runUser(gctx, rng)
			return nil
		})
	}

	if n := int(d.spawned.Load()); n == d.config.Users {
		d.logger.Info("all users spawned", zap.Int("users", n))
	}

	_ = g.Wait()

	d.logger.Info("users stopped",
		zap.Int64("iterations", d.iterations.Load()),
		zap.Bool("cancelled", ctx.Err() != nil))

	return d.stop()
}

func (d *Driver) seed(user int) int64 {
	if d.config.Seed != 0 {
		return d.config.Seed + int64(user)
	}
	return time.Now().UnixNano() + int64(user)
}

func (d *Driver) runUser(ctx context.Context, rng *rand.Rand) {
	d.active.Add(1)
	defer d.active.Add(-1)

	for {
		if ctx.Err() != nil {
			return
		}

		idx := d.pick(rng.Intn(d.totalWeight))
		d.tasks[idx].Fn(ctx)
		d.taskCounts[idx].Add(1)
		d.iterations.Add(1)

		if !d.think(ctx, rng) {
			return
		}
	}
}

// pick maps n in [0, totalWeight) to a task index by cumulative weight.
func (d *Driver) pick(n int) int {
	for i, t := range d.tasks {
		if n < t.Weight {
			return i
		}
		n -= t.Weight
	}
	return len(d.tasks) - 1
}

// think waits a random time in [WaitMin, WaitMax]. It returns false if ctx
// ended first.
func (d *Driver) think(ctx context.Context, rng *rand.Rand) bool {
	wait := d.config.WaitMin
	if diff := d.config.WaitMax - d.config.WaitMin; diff > 0 {
		wait += time.Duration(rng.Int63n(int64(diff) + 1))
	}

	if wait <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Driver) stop() error {
	d.stopMu.Lock()
	handlers := append([]StopHandler(nil), d.stopHandlers...)
	d.stopMu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h(); err != nil {
			d.logger.Error("stop handler failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a point-in-time view of the run.
func (d *Driver) Stats() Stats {
	counts := make(map[string]int64, len(d.tasks))
	for i, t := range d.tasks {
		counts[t.Name] += d.taskCounts[i].Load()
	}

	return Stats{
		UsersSpawned: int(d.spawned.Load()),
		ActiveUsers:  int(d.active.Load()),
		Iterations:   d.iterations.Load(),
		TaskCounts:   counts,
	}
}
