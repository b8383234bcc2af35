package mem

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Handle is a read-only capability bound to one attached process. It is
// owned by whoever attached it and is not safe for concurrent use.
type Handle struct {
	pid     int32
	name    string
	ptrSize int
	valid   bool
}

func (h *Handle) Pid() int32       { return h.pid }
func (h *Handle) Name() string     { return h.name }
func (h *Handle) PointerSize() int { return h.ptrSize }

func (h *Handle) Valid() bool { return h != nil && h.valid }

func (h *Handle) Invalidate() {
	if h != nil {
		h.valid = false
	}
}

func (h *Handle) String() string {
	if h == nil {
		return "<detached>"
	}
	return fmt.Sprintf("%s[%d]", h.name, h.pid)
}

// Accessor performs typed reads over a System. It never writes.
type Accessor struct {
	sys System
}

func NewAccessor(sys System) *Accessor {
	return &Accessor{sys: sys}
}

// Attach binds to the first running process whose name contains
// nameSubstring, compared case-insensitively. With several candidates
// the first one listed by the process directory wins.
func (a *Accessor) Attach(nameSubstring string) (*Handle, error) {
	procs, err := a.sys.Processes()
	if err != nil {
		return nil, &Fault{Kind: ProcessNotFound, Err: err}
	}

	needle := strings.ToLower(nameSubstring)
	for _, p := range procs {
		if !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		ptrSize, err := a.sys.PointerSize(p.Pid)
		if err != nil {
			if f, _ := classify(0, err); f.Kind == AccessDenied {
				return nil, f
			}
			ptrSize = 8
		}
		attachTotal.Inc()
		return &Handle{pid: p.Pid, name: p.Name, ptrSize: ptrSize, valid: true}, nil
	}

	return nil, &Fault{Kind: ProcessNotFound, Err: fmt.Errorf("no process matching %q", nameSubstring)}
}

// ReadBytes reads n bytes at addr. Failures come back as *Fault; a fault
// that shows the process is gone or unreadable also invalidates h.
func (a *Accessor) ReadBytes(h *Handle, addr uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := a.readInto(h, addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *Accessor) readInto(h *Handle, addr uint64, buf []byte) error {
	readTotal.Inc()
	if !h.Valid() {
		return a.fault(&Fault{Kind: ReadFault, Addr: addr, Err: fmt.Errorf("stale handle %s", h)})
	}
	if addr == 0 {
		return a.fault(&Fault{Kind: ReadFault, Err: fmt.Errorf("null address")})
	}

	count, err := a.sys.ReadAt(h.pid, addr, buf)
	if err != nil {
		f, gone := classify(addr, err)
		if gone {
			h.Invalidate()
		}
		return a.fault(f)
	}
	if count != len(buf) {
		return a.fault(&Fault{Kind: ReadFault, Addr: addr + uint64(count), Err: fmt.Errorf("short read %d/%d", count, len(buf))})
	}
	return nil
}

func (a *Accessor) fault(f *Fault) error {
	readFaultTotal.WithLabelValues(f.Kind.String()).Inc()
	return f
}

// ReadPointer decodes a little-endian pointer of the target's width.
func (a *Accessor) ReadPointer(h *Handle, addr uint64) (uint64, error) {
	size := 8
	if h.Valid() && h.ptrSize == 4 {
		size = 4
	}
	var buf [8]byte
	if err := a.readInto(h, addr, buf[:size]); err != nil {
		return 0, err
	}
	if size == 4 {
		return uint64(binary.LittleEndian.Uint32(buf[:4])), nil
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (a *Accessor) ReadFloat(h *Handle, addr uint64) (float32, error) {
	var buf [4]byte
	if err := a.readInto(h, addr, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadModuleImage reads a whole module. Pages that cannot be read are
// zero filled so one guard page does not hide the rest of the image.
func (a *Accessor) ReadModuleImage(h *Handle, m ModuleInfo) ([]byte, error) {
	img := make([]byte, m.Size)
	if err := a.readInto(h, m.Base, img); err == nil {
		return img, nil
	} else if !h.Valid() {
		return nil, err
	}

	readable := 0
	for off := uint64(0); off < m.Size; off += PageSize {
		end := off + PageSize
		if end > m.Size {
			end = m.Size
		}
		if err := a.readInto(h, m.Base+off, img[off:end]); err != nil {
			if !h.Valid() {
				return nil, err
			}
			for i := off; i < end; i++ {
				img[i] = 0
			}
			continue
		}
		readable++
	}
	if readable == 0 {
		return nil, &Fault{Kind: ReadFault, Addr: m.Base, Err: fmt.Errorf("module %s unreadable", m.Name)}
	}
	return img, nil
}

// Alive reports whether the process behind h still exists.
func (a *Accessor) Alive(h *Handle) bool {
	return h.Valid() && a.sys.Alive(h.pid)
}
