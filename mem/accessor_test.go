package mem_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecScope/mem"
	"vecScope/mem/memtest"
)

func newTarget() (*memtest.System, *mem.Accessor) {
	sys := memtest.New()
	sys.AddProcess(100, "bash")
	sys.AddProcess(200, "L8RSK8R.exe")
	sys.AddProcess(300, "l8rsk8r.exe")
	return sys, mem.NewAccessor(sys)
}

func TestAttachFirstCaseInsensitiveMatch(t *testing.T) {
	_, acc := newTarget()

	h, err := acc.Attach("sk8r")
	require.NoError(t, err)
	assert.Equal(t, int32(200), h.Pid())
	assert.True(t, h.Valid())
	assert.Equal(t, 8, h.PointerSize())
}

func TestAttachNotFound(t *testing.T) {
	_, acc := newTarget()

	h, err := acc.Attach("notepad")
	assert.Nil(t, h)
	assert.True(t, errors.Is(err, mem.ErrProcessNotFound))
	assert.Equal(t, mem.ProcessNotFound, mem.KindOf(err))
}

func TestTypedReads(t *testing.T) {
	sys, acc := newTarget()
	sys.Map(200, 0x10000, 0x1000)
	sys.WritePointer(200, 0x10010, 0xdeadbeefcafe)
	sys.WriteFloat(200, 0x10020, -12.5)
	sys.Write(200, 0x10030, []byte{0x78, 0x56, 0x34, 0x12})

	h, err := acc.Attach("l8rsk8r")
	require.NoError(t, err)

	p, err := acc.ReadPointer(h, 0x10010)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeefcafe), p)

	f, err := acc.ReadFloat(h, 0x10020)
	require.NoError(t, err)
	assert.Equal(t, float32(-12.5), f)

	sys.SetPointerSize(200, 4)
	h, err = acc.Attach("l8rsk8r")
	require.NoError(t, err)
	p, err = acc.ReadPointer(h, 0x10030)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12345678), p)
}

func TestReadFaultsFailSoft(t *testing.T) {
	sys, acc := newTarget()
	sys.Map(200, 0x10000, 0x100)
	h, err := acc.Attach("l8rsk8r")
	require.NoError(t, err)

	_, err = acc.ReadBytes(h, 0x90000, 8)
	assert.Equal(t, mem.ReadFault, mem.KindOf(err))
	assert.True(t, h.Valid(), "unmapped address must not drop the handle")

	_, err = acc.ReadBytes(h, 0, 8)
	assert.Equal(t, mem.ReadFault, mem.KindOf(err))

	_, err = acc.ReadBytes(h, 0x100fc, 8)
	assert.Equal(t, mem.ReadFault, mem.KindOf(err), "short read")

	sys.Kill(200)
	_, err = acc.ReadBytes(h, 0x10000, 8)
	assert.Equal(t, mem.ReadFault, mem.KindOf(err))
	assert.False(t, h.Valid(), "exited process invalidates the handle")

	_, err = acc.ReadFloat(h, 0x10000)
	assert.Error(t, err)
}

func TestFindModule(t *testing.T) {
	sys, acc := newTarget()
	sys.AddModule(200, "/games/l8r/Mono-2.0-bdwgc.dll", 0x7f0000000000, 0x2000)
	sys.AddModule(200, "/games/l8r/Mono-2.0-bdwgc.dll", 0x7f0000002000, 0x3000)
	sys.AddModule(200, "/usr/lib/libc.so.6", 0x7f1000000000, 0x1000)
	sys.Map(200, 0x10000, 0x1000)

	h, err := acc.Attach("l8rsk8r")
	require.NoError(t, err)

	mods, err := acc.ListModules(h)
	require.NoError(t, err)
	require.Len(t, mods, 2)

	m, ok, err := acc.FindModule(h, "mono-2.0-BDWGC.dll")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f0000000000), m.Base)
	assert.Equal(t, uint64(0x5000), m.Size)
	assert.True(t, m.Contains(0x7f0000004fff))
	assert.False(t, m.Contains(0x7f0000005000))

	_, ok, err = acc.FindModule(h, "mono")
	require.NoError(t, err, "absence is not a failure")
	assert.False(t, ok)
}

func TestListModulesUnavailable(t *testing.T) {
	sys, acc := newTarget()
	h, err := acc.Attach("l8rsk8r")
	require.NoError(t, err)

	sys.MapsErr = errors.New("snapshot facility unavailable")
	_, err = acc.ListModules(h)
	assert.Equal(t, mem.NoModules, mem.KindOf(err))
	assert.True(t, h.Valid())
}

func TestReadModuleImageSkipsHoles(t *testing.T) {
	sys, acc := newTarget()
	sys.AddModule(200, "/games/l8r/game.exe", 0x400000, 0x1000)
	sys.Map(200, 0x402000, 0x1000)
	sys.Write(200, 0x400010, []byte{0xAA, 0xBB})
	sys.Write(200, 0x402000, []byte{0xCC})

	h, err := acc.Attach("l8rsk8r")
	require.NoError(t, err)

	img, err := acc.ReadModuleImage(h, mem.ModuleInfo{Name: "game.exe", Base: 0x400000, Size: 0x3000})
	require.NoError(t, err)
	require.Len(t, img, 0x3000)
	assert.Equal(t, byte(0xAA), img[0x10])
	assert.Equal(t, byte(0), img[0x1000])
	assert.Equal(t, byte(0xCC), img[0x2000])
}
