package resolve

import (
	"fmt"

	"vecScope/mem"
)

type PointerReader interface {
	ReadPointer(h *mem.Handle, addr uint64) (uint64, error)
}

// Hop is one dereference of a pointer chain.
type Hop struct {
	From   uint64 // address that was read
	Offset uint64 // offset added before the read, zero for the base
	Value  uint64
	Err    error
}

// Resolve dereferences base, then for every offset reads the pointer
// stored at previous+offset. It fails with ChainResolutionFailed at the
// first null or unreadable pointer. The result depends only on the
// current memory contents, so callers must not reuse it across ticks.
func Resolve(r PointerReader, h *mem.Handle, base uint64, offsets []uint64) (uint64, error) {
	hops, err := Trace(r, h, base, offsets)
	if err != nil {
		return 0, err
	}
	return hops[len(hops)-1].Value, nil
}

// Trace is Resolve keeping every hop, for diagnostics.
func Trace(r PointerReader, h *mem.Handle, base uint64, offsets []uint64) ([]Hop, error) {
	hops := make([]Hop, 0, len(offsets)+1)

	addr, err := r.ReadPointer(h, base)
	hops = append(hops, Hop{From: base, Value: addr, Err: err})
	if err := chainErr(0, base, addr, err); err != nil {
		return hops, err
	}

	for i, off := range offsets {
		from := addr + off
		addr, err = r.ReadPointer(h, from)
		hops = append(hops, Hop{From: from, Offset: off, Value: addr, Err: err})
		if err := chainErr(i+1, from, addr, err); err != nil {
			return hops, err
		}
	}
	return hops, nil
}

func chainErr(step int, from, value uint64, err error) error {
	if err != nil {
		return &mem.Fault{Kind: mem.ChainResolutionFailed, Addr: from, Err: fmt.Errorf("step %d: %w", step, err)}
	}
	if value == 0 {
		return &mem.Fault{Kind: mem.ChainResolutionFailed, Addr: from, Err: fmt.Errorf("step %d: null pointer", step)}
	}
	return nil
}
