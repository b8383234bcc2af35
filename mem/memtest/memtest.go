// Package memtest provides an in-memory mem.System for tests.
package memtest

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"vecScope/mem"
)

type region struct {
	start uint64
	data  []byte
}

type process struct {
	name    string
	ptrSize int
	alive   bool
	maps    []mem.Mapping
	regions []*region
}

// System is a fake process table with sparse, writable memory. Reads
// outside any region fail with EFAULT, reads of a dead process with ESRCH.
type System struct {
	mu        sync.Mutex
	order     []int32
	procs     map[int32]*process
	MapsErr   error
	ListErr   error
	ReadCount int
}

func New() *System {
	return &System{procs: map[int32]*process{}}
}

func (s *System) AddProcess(pid int32, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, pid)
	s.procs[pid] = &process{name: name, ptrSize: 8, alive: true}
}

func (s *System) SetPointerSize(pid int32, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[pid].ptrSize = size
}

func (s *System) Kill(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[pid].alive = false
}

// AddModule maps a zeroed, readable image of size bytes at base.
func (s *System) AddModule(pid int32, path string, base, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.procs[pid]
	p.maps = append(p.maps, mem.Mapping{Start: base, End: base + size, Perms: "r-xp", Path: path})
	p.regions = append(p.regions, &region{start: base, data: make([]byte, size)})
}

// Map adds anonymous readable memory.
func (s *System) Map(pid int32, base, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.procs[pid]
	p.maps = append(p.maps, mem.Mapping{Start: base, End: base + size, Perms: "rw-p"})
	p.regions = append(p.regions, &region{start: base, data: make([]byte, size)})
}

func (s *System) Write(pid int32, addr uint64, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.procs[pid].regions {
		if addr >= r.start && addr+uint64(len(b)) <= r.start+uint64(len(r.data)) {
			copy(r.data[addr-r.start:], b)
			return
		}
	}
	panic("memtest: write outside mapped memory")
}

func (s *System) WritePointer(pid int32, addr, value uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	s.Write(pid, addr, b[:])
}

func (s *System) WriteFloat(pid int32, addr uint64, value float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(value))
	s.Write(pid, addr, b[:])
}

func (s *System) Processes() ([]mem.ProcessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var out []mem.ProcessEntry
	for _, pid := range s.order {
		if p := s.procs[pid]; p.alive {
			out = append(out, mem.ProcessEntry{Pid: pid, Name: p.name})
		}
	}
	return out, nil
}

func (s *System) Maps(pid int32) ([]mem.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MapsErr != nil {
		return nil, s.MapsErr
	}
	p, ok := s.procs[pid]
	if !ok || !p.alive {
		return nil, unix.ESRCH
	}
	maps := append([]mem.Mapping(nil), p.maps...)
	sort.Slice(maps, func(i, j int) bool { return maps[i].Start < maps[j].Start })
	return maps, nil
}

func (s *System) ReadAt(pid int32, addr uint64, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadCount++
	p, ok := s.procs[pid]
	if !ok || !p.alive {
		return 0, unix.ESRCH
	}
	for _, r := range p.regions {
		end := r.start + uint64(len(r.data))
		if addr >= r.start && addr < end {
			// reads crossing the end of a region come back short
			return copy(buf, r.data[addr-r.start:]), nil
		}
	}
	return 0, unix.EFAULT
}

func (s *System) PointerSize(pid int32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	if !ok {
		return 0, unix.ESRCH
	}
	return p.ptrSize, nil
}

func (s *System) Alive(pid int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	return ok && p.alive
}
