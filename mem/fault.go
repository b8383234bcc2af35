package mem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type FaultKind int

const (
	FaultNone FaultKind = iota
	ProcessNotFound
	AccessDenied
	ModuleNotResolved
	ChainResolutionFailed
	PatternNotFound
	ReadFault
	ImplausibleSample
	NoModules
)

var faultNames = map[FaultKind]string{
	FaultNone:             "none",
	ProcessNotFound:       "process not found",
	AccessDenied:          "access denied",
	ModuleNotResolved:     "module not resolved",
	ChainResolutionFailed: "chain resolution failed",
	PatternNotFound:       "pattern not found",
	ReadFault:             "read fault",
	ImplausibleSample:     "implausible sample",
	NoModules:             "no modules",
}

func (k FaultKind) String() string {
	if s, ok := faultNames[k]; ok {
		return s
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault is the error type returned by every remote-memory operation.
// Two faults match under errors.Is when their kinds are equal.
type Fault struct {
	Kind FaultKind
	Addr uint64
	Err  error
}

func (f *Fault) Error() string {
	msg := f.Kind.String()
	if f.Addr != 0 {
		msg = fmt.Sprintf("%s @ 0x%016x", msg, f.Addr)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

var (
	ErrProcessNotFound       = &Fault{Kind: ProcessNotFound}
	ErrAccessDenied          = &Fault{Kind: AccessDenied}
	ErrModuleNotResolved     = &Fault{Kind: ModuleNotResolved}
	ErrChainResolutionFailed = &Fault{Kind: ChainResolutionFailed}
	ErrPatternNotFound       = &Fault{Kind: PatternNotFound}
	ErrReadFault             = &Fault{Kind: ReadFault}
	ErrImplausibleSample     = &Fault{Kind: ImplausibleSample}
	ErrNoModules             = &Fault{Kind: NoModules}
)

// KindOf returns the fault kind carried by err, FaultNone if there is none.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultNone
}

// classify maps a failed remote read onto the taxonomy. gone reports
// whether the handle has to be dropped.
func classify(addr uint64, err error) (f *Fault, gone bool) {
	switch {
	case errors.Is(err, unix.ESRCH):
		return &Fault{Kind: ReadFault, Addr: addr, Err: fmt.Errorf("process does not exist or exited: %w", err)}, true
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return &Fault{Kind: AccessDenied, Addr: addr, Err: fmt.Errorf("permission denied: %w", err)}, true
	case errors.Is(err, unix.EFAULT), errors.Is(err, unix.EIO):
		return &Fault{Kind: ReadFault, Addr: addr, Err: fmt.Errorf("address not mapped: %w", err)}, false
	}
	return &Fault{Kind: ReadFault, Addr: addr, Err: err}, false
}
