package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// dumpArgs parses "<cmd> <addr> [n]" where n counts items.
func dumpArgs(a interface{}, defN uint64) (addr, n uint64, err error) {
	args, ok := a.([]string)
	if !ok || len(args) < 3 {
		return 0, 0, errors.New("invalid arguments")
	}
	n = defN
	if addr, err = strconv.ParseUint(args[2], 0, 64); err != nil {
		return 0, 0, err
	}
	if len(args) > 3 && args[3] != "" {
		if n, err = strconv.ParseUint(args[3], 0, 64); err != nil {
			return 0, 0, err
		}
	}
	if n == 0 || n > 0x10000 {
		return 0, 0, fmt.Errorf("count %d out of range", n)
	}
	return addr, n, nil
}

func (c *console) read(addr uint64, size int) ([]byte, error) {
	h, err := c.handle()
	if err != nil {
		return nil, err
	}
	return c.s.acc.ReadBytes(h, addr, size)
}

func (c *console) cmdDumpByte(a interface{}) error {
	addr, n, err := dumpArgs(a, 64)
	if err != nil {
		return err
	}
	data, err := c.read(addr, int(n))
	if err != nil {
		return err
	}
	dump(os.Stdout, addr, data, 1, func(b []byte) string { return fmt.Sprintf("%02x ", b[0]) })
	return nil
}

func (c *console) cmdDumpQword(a interface{}) error {
	addr, n, err := dumpArgs(a, 8)
	if err != nil {
		return err
	}
	data, err := c.read(addr, int(n*8))
	if err != nil {
		return err
	}
	dump(os.Stdout, addr, data, 8, func(b []byte) string {
		return fmt.Sprintf("0x%016x ", binary.LittleEndian.Uint64(b))
	})
	return nil
}

func (c *console) cmdDumpFloat(a interface{}) error {
	addr, n, err := dumpArgs(a, 16)
	if err != nil {
		return err
	}
	data, err := c.read(addr, int(n*4))
	if err != nil {
		return err
	}
	dump(os.Stdout, addr, data, 4, func(b []byte) string {
		return fmt.Sprintf("%14.4f ", math.Float32frombits(binary.LittleEndian.Uint32(b)))
	})
	return nil
}

// dump prints 16 bytes per row as items of the given width followed by
// the printable characters.
func dump(w io.Writer, addr uint64, data []byte, width int, item func([]byte) string) {
	blank := len(item(make([]byte, width)))
	for i := 0; i < len(data); i += 16 {
		fmt.Fprintf(w, "%s%016x%s: ", ColorBlue, addr+uint64(i), ColorReset)

		for j := 0; j < 16; j += width {
			if len(data)-(i+j) >= width {
				fmt.Fprint(w, item(data[i+j:i+j+width]))
			} else {
				fmt.Fprintf(w, "%*s", blank, "")
			}
		}

		fmt.Fprint(w, " |")
		for j := 0; j < 16 && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprint(w, "|\n")
	}
}
