package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vecScope/config"
	"vecScope/graph"
	"vecScope/telemetry"
)

var (
	frameTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecscope_frames_total",
		Help: "Total number of rendered frames",
	})
	frameSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vecscope_frame_seconds",
		Help:    "Time spent building and presenting one frame",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
	bufferedSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vecscope_buffered_samples",
		Help: "Samples currently held in the telemetry window",
	})
)

var ErrStopped = errors.New("render loop stopped")

type Frame struct {
	At       time.Time
	Status   telemetry.Status
	Readout  telemetry.Readout
	Payloads []graph.Payload
	Buffered int
	Dropped  uint64
}

type Presenter interface {
	Canvas() graph.Canvas
	Present(Frame) error
}

type Recorder interface {
	Record(st telemetry.Status, samples []telemetry.Sample) error
}

type StatusSource interface {
	Status() telemetry.Status
	Dropped() uint64
}

// Scene is the state owned by the render loop. Other goroutines reach it
// only through Call.
type Scene struct {
	Buffer    *telemetry.Buffer
	Projector *graph.Projector
	Channels  []telemetry.Channel
	Readout   telemetry.Readout
	Last      Frame
}

type sceneReq struct {
	run  func(*Scene) (any, error)
	resp chan sceneResp
}

type sceneResp struct {
	v   any
	err error
}

type Renderer struct {
	in        <-chan telemetry.Sample
	status    StatusSource
	presenter Presenter
	recorder  Recorder
	interval  time.Duration
	now       func() time.Time

	scene   Scene
	req     chan sceneReq
	done    chan struct{}
	limiter *rate.Limiter
}

type Option func(*Renderer)

func WithPresenter(p Presenter) Option { return func(r *Renderer) { r.presenter = p } }

func WithRecorder(rec Recorder) Option { return func(r *Renderer) { r.recorder = rec } }

func New(cfg config.Config, in <-chan telemetry.Sample, status StatusSource, opts ...Option) (*Renderer, error) {
	channels, err := telemetry.ParseChannels(cfg.Channels)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		in:       in,
		status:   status,
		interval: cfg.RenderInterval,
		now:      time.Now,
		scene: Scene{
			Buffer:    telemetry.NewBuffer(cfg.Retention),
			Projector: graph.NewProjector(graph.OptionsFrom(cfg)),
			Channels:  channels,
		},
		req:     make(chan sceneReq),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run renders every RenderInterval and serves Call requests between
// frames until ctx is done.
func (r *Renderer) Run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Frame(); err != nil && r.limiter.Allow() {
				zap.S().Warnw("frame failed", "error", err)
			}
		case q := <-r.req:
			var out any
			var err error
			func() {
				defer func() {
					if x := recover(); x != nil {
						err = fmt.Errorf("%v", x)
					}
				}()
				out, err = q.run(&r.scene)
			}()
			q.resp <- sceneResp{out, err}
			close(q.resp)
		}
	}
}

// Call runs fn on the render goroutine and waits for its result.
func Call[T any](r *Renderer, fn func(*Scene) (T, error)) (T, error) {
	var zero T
	resp := make(chan sceneResp, 1)
	select {
	case r.req <- sceneReq{run: func(s *Scene) (any, error) { v, err := fn(s); return v, err }, resp: resp}:
	case <-r.done:
		return zero, ErrStopped
	}
	r0 := <-resp
	if r0.err != nil {
		return zero, r0.err
	}
	v, _ := r0.v.(T)
	return v, nil
}

// Frame drains the queue into the buffer, projects the window and hands
// the result to the presenter. It must run on the render goroutine.
func (r *Renderer) Frame() (Frame, error) {
	start := time.Now()
	defer func() { frameSeconds.Observe(time.Since(start).Seconds()) }()

	drained := r.drain()
	buf := r.scene.Buffer
	for _, s := range drained {
		buf.Append(s)
	}
	buf.Evict(r.now())
	bufferedSamples.Set(float64(buf.Len()))

	st := r.status.Status()
	if len(drained) > 0 {
		r.scene.Readout = drained[len(drained)-1].Readout()
	}
	if st.State != telemetry.Linked {
		r.scene.Readout = telemetry.NoData
	}

	var errs []error
	if r.recorder != nil && len(drained) > 0 {
		if err := r.recorder.Record(st, drained); err != nil {
			errs = append(errs, fmt.Errorf("record: %w", err))
		}
	}

	f := Frame{
		At:       r.now(),
		Status:   st,
		Readout:  r.scene.Readout,
		Buffered: buf.Len(),
		Dropped:  r.status.Dropped(),
	}
	if r.presenter != nil {
		f.Payloads = r.scene.Projector.ProjectAll(buf.Snapshot(), r.scene.Channels, r.presenter.Canvas())
		if err := r.presenter.Present(f); err != nil {
			errs = append(errs, fmt.Errorf("present: %w", err))
		}
	}
	r.scene.Last = f
	frameTotal.Inc()
	return f, errors.Join(errs...)
}

func (r *Renderer) drain() []telemetry.Sample {
	var out []telemetry.Sample
	for {
		select {
		case s := <-r.in:
			out = append(out, s)
		default:
			return out
		}
	}
}
