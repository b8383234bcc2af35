package resolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"vecScope/mem"
)

var scanTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vecscope_pattern_scan_total",
	Help: "Total number of module pattern scans",
})

type Source int

const (
	SourceStatic Source = iota
	SourcePattern
)

func (s Source) String() string {
	if s == SourcePattern {
		return "pattern"
	}
	return "static"
}

// ChainSpec is the static location: module base + BaseOffset, then Offsets.
type ChainSpec struct {
	Module     string
	BaseOffset uint64
	Offsets    []uint64
}

type Memory interface {
	PointerReader
	ImageReader
}

type Resolution struct {
	Address uint64
	Base    uint64
	Source  Source
	// ScanErr is the pattern failure that forced the static fallback.
	ScanErr error
}

// Locator turns a module into the object address once per tick. The
// chain is walked every call; only the pattern match is kept between
// calls, because scanning a whole image is expensive.
type Locator struct {
	mem         Memory
	chain       ChainSpec
	pattern     *PatternSpec
	rescanAfter int

	sticky     uint64
	stickyMod  uint64
	haveSticky bool
	scanned    bool
	failures   int
}

func NewLocator(m Memory, chain ChainSpec, pattern *PatternSpec, rescanAfter int) *Locator {
	if rescanAfter < 1 {
		rescanAfter = 1
	}
	return &Locator{mem: m, chain: chain, pattern: pattern, rescanAfter: rescanAfter}
}

// Reset forgets the pattern match, e.g. after re-attaching.
func (l *Locator) Reset() {
	l.haveSticky = false
	l.scanned = false
	l.failures = 0
}

// Fail records a failure detected by the caller after a successful
// resolution, such as an implausible sample.
func (l *Locator) Fail() {
	l.failure()
}

func (l *Locator) failure() {
	l.failures++
	if l.haveSticky && l.failures >= l.rescanAfter {
		zap.S().Infow("dropping pattern base after chain failures", "base", l.sticky, "failures", l.failures)
		l.haveSticky = false
	}
}

func (l *Locator) Locate(h *mem.Handle, m mem.ModuleInfo) (Resolution, error) {
	res := Resolution{Base: m.Base + l.chain.BaseOffset, Source: SourceStatic}

	if base, err := l.patternBase(h, m); err != nil {
		res.ScanErr = err
	} else if base != 0 {
		res.Base = base
		res.Source = SourcePattern
	}

	addr, err := Resolve(l.mem, h, res.Base, l.chain.Offsets)
	if err != nil {
		l.failure()
		return res, err
	}
	l.failures = 0
	res.Address = addr
	return res, nil
}

// patternBase returns the sticky match, scanning when there is none and
// the failure budget allows it. Zero with a nil error means no pattern
// is in use right now.
func (l *Locator) patternBase(h *mem.Handle, m mem.ModuleInfo) (uint64, error) {
	if l.pattern == nil {
		return 0, nil
	}
	if l.haveSticky && l.stickyMod != m.Base {
		zap.S().Infow("module moved, rescanning", "module", m.Name, "old", l.stickyMod, "new", m.Base)
		l.Reset()
	}
	if l.haveSticky {
		return l.sticky, nil
	}
	if l.scanned && l.failures < l.rescanAfter {
		return 0, nil
	}

	l.scanned = true
	l.failures = 0
	addr, err := Scan(l.mem, h, m, *l.pattern)
	if err != nil {
		return 0, err
	}
	zap.S().Infow("pattern matched", "module", m.Name, "base", addr)
	l.sticky, l.stickyMod, l.haveSticky = addr, m.Base, true
	return addr, nil
}
