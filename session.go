package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"vecScope/config"
	"vecScope/mem"
	"vecScope/record"
	"vecScope/render"
	"vecScope/telemetry"
)

// session wires the sampler and the render loop over one bounded queue.
type session struct {
	cfg      config.Config
	acc      *mem.Accessor
	queue    chan telemetry.Sample
	sampler  *telemetry.Sampler
	renderer *render.Renderer
	rec      *record.DB
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newSession(cfg config.Config, p render.Presenter) (*session, error) {
	return newSessionWith(cfg, mem.NewAccessor(mem.NewSystem()), p)
}

func newSessionWith(cfg config.Config, acc *mem.Accessor, p render.Presenter) (*session, error) {
	s := &session{
		cfg:   cfg,
		acc:   acc,
		queue: make(chan telemetry.Sample, cfg.QueueSize),
	}

	var err error
	if s.sampler, err = telemetry.NewSampler(cfg, acc, s.queue); err != nil {
		return nil, err
	}

	var opts []render.Option
	if p != nil {
		opts = append(opts, render.WithPresenter(p))
	}
	if cfg.RecordPath != "" {
		if s.rec, err = record.NewDB(cfg.RecordPath, cfg.Process); err != nil {
			return nil, err
		}
		opts = append(opts, render.WithRecorder(s.rec))
	}
	if s.renderer, err = render.New(cfg, s.queue, s.sampler, opts...); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		guard("sampler", func() { s.sampler.Run(ctx) })
	}()
	go func() {
		defer s.wg.Done()
		guard("render", func() { s.renderer.Run(ctx) })
	}()
}

// Close stops both loops and waits for them.
func (s *session) Close() {
	s.sampler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.rec != nil {
		if err := s.rec.Close(); err != nil {
			zap.S().Warnw("closing recording", "error", err)
		}
	}
}
