//go:build linux

package mem

import (
	"debug/elf"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// LinuxSystem reads other processes through process_vm_readv and
// enumerates them through procfs.
type LinuxSystem struct{}

func NewSystem() System {
	return &LinuxSystem{}
}

func (LinuxSystem) Processes() ([]ProcessEntry, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, errors.Wrap(err, "list processes")
	}
	entries := make([]ProcessEntry, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// exited between the listing and the lookup
			continue
		}
		entries = append(entries, ProcessEntry{Pid: p.Pid, Name: name})
	}
	return entries, nil
}

func (LinuxSystem) Maps(pid int32) ([]Mapping, error) {
	p, err := procfs.NewProc(int(pid))
	if err != nil {
		return nil, errors.Wrapf(err, "open /proc/%d", pid)
	}
	pm, err := p.ProcMaps()
	if err != nil {
		return nil, errors.Wrapf(err, "read /proc/%d/maps", pid)
	}
	maps := make([]Mapping, 0, len(pm))
	for _, m := range pm {
		maps = append(maps, Mapping{
			Start:  uint64(m.StartAddr),
			End:    uint64(m.EndAddr),
			Perms:  permString(m.Perms),
			Offset: uint64(m.Offset),
			Path:   m.Pathname,
		})
	}
	return maps, nil
}

func permString(p *procfs.ProcMapPermissions) string {
	if p == nil {
		return "----"
	}
	b := []byte("----")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Execute {
		b[2] = 'x'
	}
	if p.Shared {
		b[3] = 's'
	} else if p.Private {
		b[3] = 'p'
	}
	return string(b)
}

func (LinuxSystem) ReadAt(pid int32, addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	return unix.ProcessVMReadv(int(pid), local, remote, 0)
}

func (LinuxSystem) PointerSize(pid int32) (int, error) {
	f, err := elf.Open(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch f.Class {
	case elf.ELFCLASS32:
		return 4, nil
	case elf.ELFCLASS64:
		return 8, nil
	}
	return 0, errors.New("unknown ELF class")
}

func (LinuxSystem) Alive(pid int32) bool {
	ok, err := process.PidExists(pid)
	return err == nil && ok
}
