package mem

import (
	"strings"
)

// Maps returns the raw memory map of the attached process.
func (a *Accessor) Maps(h *Handle) ([]Mapping, error) {
	if !h.Valid() {
		return nil, &Fault{Kind: NoModules, Err: ErrProcessNotFound}
	}
	maps, err := a.sys.Maps(h.pid)
	if err != nil {
		if !a.sys.Alive(h.pid) {
			h.Invalidate()
			return nil, &Fault{Kind: ProcessNotFound, Err: err}
		}
		return nil, &Fault{Kind: NoModules, Err: err}
	}
	return maps, nil
}

// ListModules returns one entry per loaded image. The result is a
// snapshot; modules may load or unload right after it is taken.
func (a *Accessor) ListModules(h *Handle) ([]ModuleInfo, error) {
	maps, err := a.Maps(h)
	if err != nil {
		return nil, err
	}
	return foldModules(maps), nil
}

// FindModule looks a module up by exact, case-insensitive name. A module
// that is not loaded yet is reported with ok == false and no error.
func (a *Accessor) FindModule(h *Handle, name string) (m ModuleInfo, ok bool, err error) {
	modules, err := a.ListModules(h)
	if err != nil {
		return ModuleInfo{}, false, err
	}
	for _, mod := range modules {
		if strings.EqualFold(mod.Name, name) {
			return mod, true, nil
		}
	}
	return ModuleInfo{}, false, nil
}
