package mem

import (
	"path/filepath"
	"strings"
)

const PageSize = 0x1000

type ProcessEntry struct {
	Pid  int32
	Name string
}

// Mapping is one line of a process memory map.
type Mapping struct {
	Start  uint64
	End    uint64
	Perms  string
	Offset uint64
	Path   string
}

func (m Mapping) Size() uint64 { return m.End - m.Start }

// Image reports whether the mapping is backed by a file rather than
// being anonymous or one of the kernel pseudo regions ([heap], [stack]...).
func (m Mapping) Image() bool {
	return m.Path != "" && !strings.HasPrefix(m.Path, "[")
}

type ModuleInfo struct {
	Name string
	Path string
	Base uint64
	Size uint64
}

func (m ModuleInfo) End() uint64 { return m.Base + m.Size }

func (m ModuleInfo) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.End()
}

// System is the host facility used to look into other processes: a
// process directory, a module directory and a virtual-memory reader.
type System interface {
	Processes() ([]ProcessEntry, error)
	Maps(pid int32) ([]Mapping, error)
	ReadAt(pid int32, addr uint64, buf []byte) (int, error)
	PointerSize(pid int32) (int, error)
	Alive(pid int32) bool
}

// foldModules turns raw mappings into one entry per backing file.
func foldModules(maps []Mapping) []ModuleInfo {
	var modules []ModuleInfo
	index := map[string]int{}
	for _, m := range maps {
		if !m.Image() {
			continue
		}
		i, ok := index[m.Path]
		if !ok {
			index[m.Path] = len(modules)
			modules = append(modules, ModuleInfo{
				Name: filepath.Base(m.Path),
				Path: m.Path,
				Base: m.Start,
				Size: m.Size(),
			})
			continue
		}
		mod := &modules[i]
		end := mod.End()
		if m.Start < mod.Base {
			mod.Base = m.Start
		}
		if m.End > end {
			end = m.End
		}
		mod.Size = end - mod.Base
	}
	return modules
}
