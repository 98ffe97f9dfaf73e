package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Step is one iteration of a loop.
type Step func(ctx context.Context) Result

// Loop is a named step run every Interval.
type Loop struct {
	Name     string
	Interval time.Duration
	Step     Step
}

// Config sets the policy shared by every loop.
type Config struct {
	CycleTimeout  time.Duration `json:"cycle_timeout"`
	ErrorCooldown time.Duration `json:"error_cooldown"`
	MaxRetries    int           `json:"max_retries"`
}

// DefaultConfig is a 60s cycle timeout, 5s cooldown and 3 retries.
func DefaultConfig() Config {
	return Config{
		CycleTimeout:  60 * time.Second,
		ErrorCooldown: 5 * time.Second,
		MaxRetries:    3,
	}
}

// LoopStatus reports how a loop is doing.
type LoopStatus struct {
	Name        string    `json:"name"`
	Running     bool      `json:"running"`
	Iterations  int       `json:"iterations"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	Retries     int       `json:"retries"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
}

type closer struct {
	name string
	fn   func() error
}

// Supervisor owns the loops and the resources they share.
type Supervisor struct {
	cfg       Config
	loops     []Loop
	status    map[string]*LoopStatus
	closers   []closer
	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	logger    *zap.Logger
}

// New creates a supervisor. Zero config fields take their defaults; a
// negative MaxRetries disables retries.
func New(cfg Config, logger *zap.Logger) *Supervisor {
	def := DefaultConfig()
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = def.CycleTimeout
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = def.ErrorCooldown
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Supervisor{
		cfg:    cfg,
		status: make(map[string]*LoopStatus),
		logger: logger,
	}
}

// Add registers a loop. It must be called before Run.
func (s *Supervisor) Add(l Loop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops = append(s.loops, l)
	s.status[l.Name] = &LoopStatus{Name: l.Name}
}

// OnClose registers fn to run once when the supervisor is closed. Closers
// run in reverse registration order.
func (s *Supervisor) OnClose(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// Run starts every loop and blocks until all of them have stopped, either
// because ctx was cancelled or because they aborted. Aborts caused by
// anything other than cancellation are returned joined.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	loops := append([]Loop(nil), s.loops...)
	s.mu.Unlock()

	var (
		errsMu sync.Mutex
		errs   []error
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			if err := s.runLoop(ctx, l); err != nil {
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("loop %s: %w", l.Name, err))
				errsMu.Unlock()
			}
			// An aborted loop must not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *Supervisor) runLoop(ctx context.Context, l Loop) error {
	s.update(l.Name, func(st *LoopStatus) { st.Running = true })
	defer s.update(l.Name, func(st *LoopStatus) { st.Running = false })

	s.logger.Info("loop started", zap.String("loop", l.Name), zap.Duration("interval", l.Interval))
	for {
		if ctx.Err() != nil {
			s.logger.Info("loop stopped", zap.String("loop", l.Name))
			return nil
		}

		res := s.iterate(ctx, l)
		if ctx.Err() != nil {
			s.logger.Info("loop stopped", zap.String("loop", l.Name))
			return nil
		}

		wait := l.Interval
		switch res.Outcome {
		case OK:
		case Abort:
			s.logger.Error("loop aborted", zap.String("loop", l.Name), zap.Error(res.Err))
			if errors.Is(res.Err, context.Canceled) {
				return nil
			}
			return res.Err
		default:
			s.logger.Warn("loop iteration failed",
				zap.String("loop", l.Name),
				zap.String("outcome", res.Outcome.String()),
				zap.Error(res.Err))
			wait = s.cfg.ErrorCooldown
		}

		if !sleep(ctx, wait) {
			s.logger.Info("loop stopped", zap.String("loop", l.Name))
			return nil
		}
	}
}

// iterate runs one iteration, re-running the step on Retry. A Retry that
// exhausts the limit becomes a Skip.
func (s *Supervisor) iterate(ctx context.Context, l Loop) Result {
	var res Result
	for attempt := 0; ; attempt++ {
		res = s.runStep(ctx, l)
		if res.Outcome != Retry {
			break
		}
		s.update(l.Name, func(st *LoopStatus) { st.Retries++ })
		if attempt >= s.cfg.MaxRetries || ctx.Err() != nil {
			res.Outcome = Skip
			break
		}
		s.logger.Debug("retrying step", zap.String("loop", l.Name), zap.Int("attempt", attempt+1), zap.Error(res.Err))
	}

	s.update(l.Name, func(st *LoopStatus) {
		st.Iterations++
		st.LastRun = time.Now()
		st.LastOutcome = res.Outcome.String()
		st.LastError = ""
		if res.Outcome == OK {
			st.Successes++
		} else {
			st.Failures++
			if res.Err != nil {
				st.LastError = res.Err.Error()
			}
		}
	})
	return res
}

// runStep runs the step under the cycle timeout and turns a panic into a Skip.
func (s *Supervisor) runStep(ctx context.Context, l Loop) (res Result) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("loop step panicked",
				zap.String("loop", l.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res = SkipErr(fmt.Errorf("panic: %v", r))
		}
	}()
	res = l.Step(cctx)
	if res.Outcome == OK && res.Err != nil {
		res.Outcome = Skip
	}
	if res.Outcome == Abort && ctx.Err() == nil && errors.Is(res.Err, context.DeadlineExceeded) {
		// A cycle timeout skips; only the parent context stops a loop.
		res.Outcome = Skip
	}
	return res
}

func (s *Supervisor) update(name string, fn func(*LoopStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[name]; ok {
		fn(st)
	}
}

// Status returns a snapshot of every loop, sorted by name.
func (s *Supervisor) Status() []LoopStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LoopStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close runs the registered closers exactly once and returns their joined
// errors. Later calls return the same result.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		closers := append([]closer(nil), s.closers...)
		s.mu.Unlock()

		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			c := closers[i]
			if err := c.fn(); err != nil {
				s.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("supervisor closed", zap.Int("resources", len(closers)))
	})
	return s.closeErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
