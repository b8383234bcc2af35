package resolve

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

const maxInstLen = 15

// ripTarget decodes the instruction at addr and returns the absolute
// address referenced by its rip-relative memory operand.
func ripTarget(code []byte, addr uint64, ptrSize int) (uint64, error) {
	if ptrSize == 4 {
		return 0, fmt.Errorf("rip-relative operands need a 64-bit target")
	}
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return 0, fmt.Errorf("decode at 0x%016x: %w", addr, err)
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if m, ok := arg.(x86asm.Mem); ok && m.Base == x86asm.RIP {
			return uint64(int64(addr) + int64(inst.Len) + m.Disp), nil
		}
	}
	return 0, fmt.Errorf("%s at 0x%016x has no rip-relative operand", x86asm.IntelSyntax(inst, addr, nil), addr)
}
