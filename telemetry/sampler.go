package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vecScope/config"
	"vecScope/mem"
	"vecScope/resolve"
)

var (
	sampleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecscope_samples_total",
		Help: "Total number of samples handed to the render queue",
	})
	implausibleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecscope_samples_implausible_total",
		Help: "Total number of samples discarded above the ceiling",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecscope_samples_dropped_total",
		Help: "Total number of samples dropped on a full render queue",
	})
)

// Memory is everything the sampler needs from the target.
type Memory interface {
	resolve.Memory
	Attach(nameSubstring string) (*mem.Handle, error)
	FindModule(h *mem.Handle, name string) (mem.ModuleInfo, bool, error)
	ReadFloat(h *mem.Handle, addr uint64) (float32, error)
}

// Sampler owns the process handle and the resolved address. Only the
// status and the dropped counter are shared with other goroutines.
type Sampler struct {
	cfg     config.Config
	mem     Memory
	out     chan<- Sample
	locator *resolve.Locator
	now     func() time.Time

	handle  *mem.Handle
	address uint64

	// scanErr is the last failed pattern scan, kept until a scan matches
	// or the process is re-attached.
	scanErr error

	running     atomic.Bool
	status      atomic.Pointer[Status]
	dropped     atomic.Uint64
	limiter     *rate.Limiter
	scanLimiter *rate.Limiter
}

func NewSampler(cfg config.Config, m Memory, out chan<- Sample) (*Sampler, error) {
	pattern, err := cfg.PatternSpec()
	if err != nil {
		return nil, err
	}
	s := &Sampler{
		cfg:     cfg,
		mem:     m,
		out:     out,
		locator: resolve.NewLocator(m, cfg.Chain(), pattern, cfg.RescanAfter),
		now:     time.Now,
		limiter:     rate.NewLimiter(rate.Every(5*time.Second), 1),
		scanLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	s.status.Store(&Status{State: Searching})
	return s, nil
}

func (s *Sampler) Status() Status { return *s.status.Load() }

func (s *Sampler) Dropped() uint64 { return s.dropped.Load() }

func (s *Sampler) Running() bool { return s.running.Load() }

func (s *Sampler) Stop() { s.running.Store(false) }

// Run samples every SampleInterval until Stop is called or ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	s.running.Store(true)
	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for s.running.Load() {
		s.tick()
		select {
		case <-ctx.Done():
			s.running.Store(false)
			return
		case <-ticker.C:
		}
	}
}

func (s *Sampler) tick() {
	sample, ok := s.Step()
	if !ok {
		return
	}
	select {
	case s.out <- sample:
		sampleTotal.Inc()
	default:
		s.dropped.Inc()
		droppedTotal.Inc()
	}
}

// Step runs one resolution and read pass. Every failure is reported
// through the status and retried on the next call.
func (s *Sampler) Step() (Sample, bool) {
	if !s.handle.Valid() {
		s.address = 0
		h, err := s.mem.Attach(s.cfg.Process)
		if err != nil {
			state := Searching
			if mem.KindOf(err) == mem.AccessDenied {
				state = Error
			}
			s.fail(state, err, s.cfg.Process)
			return Sample{}, false
		}
		zap.S().Infow("attached", "process", h.Name(), "pid", h.Pid(), "ptr_size", h.PointerSize())
		s.handle = h
		s.scanErr = nil
		s.locator.Reset()
	}

	m, ok, err := s.mem.FindModule(s.handle, s.cfg.Module)
	if err != nil {
		s.fail(ModuleWaiting, err, s.cfg.Module)
		return Sample{}, false
	}
	if !ok {
		s.fail(ModuleWaiting, &mem.Fault{Kind: mem.ModuleNotResolved}, s.cfg.Module)
		return Sample{}, false
	}

	res, err := s.locator.Locate(s.handle, m)
	switch {
	case res.ScanErr != nil:
		s.scanErr = res.ScanErr
		if s.scanLimiter.Allow() {
			zap.S().Infow("pattern scan failed, using static base", "module", m.Name, "error", res.ScanErr)
		}
	case res.Source == resolve.SourcePattern:
		s.scanErr = nil
	}
	if err != nil {
		if s.scanErr != nil {
			s.fail(ResolvingChain, s.scanErr, s.scanErr.Error()+"; "+err.Error())
		} else {
			s.fail(ResolvingChain, err, err.Error())
		}
		return Sample{}, false
	}
	s.address = res.Address

	var v [3]float32
	for i, off := range []uint64{s.cfg.FieldX, s.cfg.FieldY, s.cfg.FieldZ} {
		if v[i], err = s.mem.ReadFloat(s.handle, s.address+off); err != nil {
			s.locator.Fail()
			s.fail(ResolvingChain, err, err.Error())
			return Sample{}, false
		}
	}

	sample := Sample{At: s.now(), X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
	if mag := sample.Magnitude(); mag > s.cfg.Ceiling || math.IsNaN(mag) || math.IsInf(mag, 0) {
		implausibleTotal.Inc()
		s.locator.Fail()
		s.fail(ResolvingChain, &mem.Fault{Kind: mem.ImplausibleSample, Addr: s.address}, "")
		return Sample{}, false
	}

	s.publish(Status{
		State:   Linked,
		PID:     s.handle.Pid(),
		Address: s.address,
		Detail:  res.Source.String(),
	})
	return sample, true
}

// fail resets the address and publishes state. A fault that invalidated
// the handle means the process is gone, which always reads as Searching.
func (s *Sampler) fail(state State, err error, detail string) {
	s.address = 0
	if state != Searching && !s.handle.Valid() {
		state = Searching
		detail = s.cfg.Process
	}
	st := Status{State: state, Fault: mem.KindOf(err), Detail: detail}
	if s.handle.Valid() {
		st.PID = s.handle.Pid()
	}
	s.publish(st)
}

func (s *Sampler) publish(st Status) {
	prev := s.status.Swap(&st)
	if prev.State != st.State || prev.Fault != st.Fault {
		zap.S().Infow("status", "state", st.State, "fault", st.Fault, "detail", st.Detail, "address", st.Address)
	} else if st.State != Linked && s.limiter.Allow() {
		zap.S().Infow("still waiting", "state", st.State, "fault", st.Fault, "detail", st.Detail)
	}
}
