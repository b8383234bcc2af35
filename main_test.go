package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecScope/config"
	"vecScope/graph"
	"vecScope/mem"
	"vecScope/mem/memtest"
	"vecScope/render"
	"vecScope/telemetry"
)

func TestDump(t *testing.T) {
	var b bytes.Buffer
	data := []byte("ABCDEFGHIJKLMNOPQR")
	dump(&b, 0x1000, data, 1, func(x []byte) string { return fmt.Sprintf("%02x ", x[0]) })

	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "0000000000001000")
	assert.Contains(t, lines[0], "41 42 43")
	assert.Contains(t, lines[0], "|ABCDEFGHIJKLMNOP|")
	assert.Contains(t, lines[1], "|QR|")
}

func TestDumpArgs(t *testing.T) {
	addr, n, err := dumpArgs([]string{"db 0x10", "db", "0x10", ""}, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10), addr)
	assert.Equal(t, uint64(64), n)

	_, n, err = dumpArgs([]string{"", "dq", "16", "0x4"}, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	_, _, err = dumpArgs([]string{"", "dq", "16", "0"}, 8)
	assert.Error(t, err)
	_, _, err = dumpArgs(nil, 8)
	assert.Error(t, err)
}

func TestToggleChannel(t *testing.T) {
	cs := []telemetry.Channel{telemetry.Magnitude}
	cs = toggleChannel(cs, telemetry.Z)
	cs = toggleChannel(cs, telemetry.X)
	assert.Equal(t, []telemetry.Channel{telemetry.Magnitude, telemetry.X, telemetry.Z}, cs)
	cs = toggleChannel(cs, telemetry.Magnitude)
	assert.Equal(t, []telemetry.Channel{telemetry.X, telemetry.Z}, cs)
}

func TestWriteCrash(t *testing.T) {
	var b bytes.Buffer
	writeCrash(&b, "sampler", errors.New("boom"), []byte("goroutine 1"), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "=== 2024-01-02T03:04:05Z panic in sampler: boom\ngoroutine 1\n", b.String())
}

func TestTermViewDraw(t *testing.T) {
	v := &termView{size: func() (int, int) { return 40, 15 }, margin: 20}
	cv := v.Canvas()
	assert.Equal(t, graph.Canvas{Width: 160, Height: 120}, cv)

	base := time.Unix(1700000000, 0)
	w := telemetry.Window{
		{At: base, X: 0},
		{At: base.Add(10 * time.Second), X: 42},
		{At: base.Add(20 * time.Second), X: 3},
	}
	opts := graph.DefaultOptions()
	opts.Retention = 20 * time.Second
	pl := graph.NewProjector(opts).Project(w, telemetry.Magnitude, cv)
	require.Len(t, pl.Peaks, 1)

	out := v.draw(render.Frame{
		Status:   telemetry.Status{State: telemetry.Linked, Address: 0xABC},
		Readout:  w[2].Readout(),
		Payloads: []graph.Payload{pl},
		Buffered: 3,
	})
	assert.Contains(t, out, "Linked: 0xABC")
	assert.Contains(t, out, "3.00 m/s")
	assert.Contains(t, out, "42.0")
	assert.Contains(t, out, "*")
	assert.Equal(t, headerRows+10+labelRows, strings.Count(out, "\n"))
}

func TestConsoleUnknownCommand(t *testing.T) {
	assert.EqualError(t, (&console{}).cmdExec("frobnicate"), "unknown command")
}

func TestConsoleRecoversFromPanickingCommand(t *testing.T) {
	saved, savedFile := compiledCmds, crashFile
	defer func() { compiledCmds, crashFile = saved, savedFile }()
	crashFile = filepath.Join(t.TempDir(), "crash_log.txt")
	compiledCmds = append([]cmdHandler{{
		regex: regexp.MustCompile(`^boom$`),
		fn:    func(*console, interface{}) error { panic("handler bug") },
	}}, saved...)

	c := &console{}
	assert.EqualError(t, c.exec("boom"), `"boom" panicked: handler bug`)
	assert.EqualError(t, c.exec("frobnicate"), "unknown command")

	data, err := os.ReadFile(crashFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panic in console: handler bug")
}

func TestSessionEndToEnd(t *testing.T) {
	const pid = 9
	sys := memtest.New()
	sys.AddProcess(pid, "game.exe")
	sys.AddModule(pid, "/games/game.exe", 0x400000, 0x1000)
	sys.Map(pid, 0x10000, 0x1000)
	sys.WritePointer(pid, 0x400100, 0x10000)
	sys.WritePointer(pid, 0x10010, 0x10400)

	cfg := config.Default()
	cfg.Process = "game"
	cfg.Module = "game.exe"
	cfg.BaseOffset = 0x100
	cfg.Offsets = []uint64{0x10}
	cfg.SampleInterval = time.Millisecond
	cfg.RenderInterval = time.Millisecond
	sys.WriteFloat(pid, 0x10400+cfg.FieldX, 3)
	sys.WriteFloat(pid, 0x10400+cfg.FieldY, 4)

	s, err := newSessionWith(cfg, mem.NewAccessor(sys), nil)
	require.NoError(t, err)
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		r, err := render.Call(s.renderer, func(sc *render.Scene) (telemetry.Readout, error) { return sc.Readout, nil })
		return err == nil && r.Valid && r.Speed == 5
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, telemetry.Linked, s.sampler.Status().State)

	c := newConsole(s)
	h, err := c.handle()
	require.NoError(t, err)
	assert.Equal(t, int32(pid), h.Pid())
	assert.NoError(t, c.cmdExec("chain"))
	assert.NoError(t, c.cmdExec("db 0x10400 16"))
	assert.NoError(t, c.cmdExec("status"))
}
