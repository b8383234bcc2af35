package resolve

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"vecScope/mem"
)

// Pattern is a byte signature where some positions are wildcards.
type Pattern struct {
	bytes   []byte
	literal []bool
}

// ParsePattern reads whitespace separated hex bytes, "?" or "??" being a
// wildcard, e.g. "48 8B 05 ?? ?? ?? ??".
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(s) {
		if tok == "?" || tok == "??" {
			p.bytes = append(p.bytes, 0)
			p.literal = append(p.literal, false)
			continue
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("invalid pattern token %q", tok)
		}
		p.bytes = append(p.bytes, byte(b))
		p.literal = append(p.literal, true)
	}
	if len(p.bytes) == 0 {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	if !p.literal[0] {
		for _, l := range p.literal {
			if l {
				return p, nil
			}
		}
		return Pattern{}, fmt.Errorf("pattern %q has no literal byte", s)
	}
	return p, nil
}

func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Len() int { return len(p.bytes) }

func (p Pattern) String() string {
	toks := make([]string, len(p.bytes))
	for i, b := range p.bytes {
		if p.literal[i] {
			toks[i] = fmt.Sprintf("%02X", b)
		} else {
			toks[i] = "??"
		}
	}
	return strings.Join(toks, " ")
}

// Index returns the first offset of p in haystack, or -1.
func (p Pattern) Index(haystack []byte) int {
	n := len(p.bytes)
	if n == 0 || len(haystack) < n {
		return -1
	}

	// anchor on the first literal byte and let IndexByte skip ahead
	anchor := 0
	for !p.literal[anchor] {
		anchor++
	}
	first := p.bytes[anchor]

	for i := 0; i <= len(haystack)-n; {
		j := bytes.IndexByte(haystack[i+anchor:len(haystack)-n+anchor+1], first)
		if j < 0 {
			return -1
		}
		i += j
		if p.matchAt(haystack[i:]) {
			return i
		}
		i++
	}
	return -1
}

func (p Pattern) matchAt(b []byte) bool {
	for k, lit := range p.literal {
		if lit && b[k] != p.bytes[k] {
			return false
		}
	}
	return true
}

// PatternSpec is a signature plus what to do with its match address.
type PatternSpec struct {
	Pattern Pattern
	Adjust  int64
	// RIPRelative decodes the instruction at match+Adjust and follows
	// its rip-relative memory operand.
	RIPRelative bool
}

type ImageReader interface {
	ReadModuleImage(h *mem.Handle, m mem.ModuleInfo) ([]byte, error)
	ReadBytes(h *mem.Handle, addr uint64, n int) ([]byte, error)
}

// Scan searches the module image for spec and returns the absolute
// match address plus the configured adjustment.
func Scan(r ImageReader, h *mem.Handle, m mem.ModuleInfo, spec PatternSpec) (uint64, error) {
	scanTotal.Inc()
	img, err := r.ReadModuleImage(h, m)
	if err != nil {
		return 0, &mem.Fault{Kind: mem.PatternNotFound, Addr: m.Base, Err: err}
	}

	idx := spec.Pattern.Index(img)
	if idx < 0 {
		return 0, &mem.Fault{Kind: mem.PatternNotFound, Err: fmt.Errorf("%s not in %s", spec.Pattern, m.Name)}
	}

	addr := uint64(int64(m.Base) + int64(idx) + spec.Adjust)
	if !spec.RIPRelative {
		return addr, nil
	}

	var code []byte
	if off := addr - m.Base; m.Contains(addr) && off+maxInstLen <= uint64(len(img)) {
		code = img[off : off+maxInstLen]
	} else if code, err = r.ReadBytes(h, addr, maxInstLen); err != nil {
		return 0, &mem.Fault{Kind: mem.PatternNotFound, Addr: addr, Err: err}
	}

	target, err := ripTarget(code, addr, h.PointerSize())
	if err != nil {
		return 0, &mem.Fault{Kind: mem.PatternNotFound, Addr: addr, Err: err}
	}
	return target, nil
}
