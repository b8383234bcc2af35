package main

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/manifoldco/promptui"

	"vecScope/graph"
	"vecScope/mem"
	"vecScope/render"
	"vecScope/resolve"
	"vecScope/telemetry"
)

type cmdHandler struct {
	regex *regexp.Regexp
	fn    func(*console, interface{}) error
}

const num = `(0[xX][0-9a-fA-F]+|0[0-7]+|[1-9][0-9]*|0)`

var compiledCmds = []cmdHandler{
	{regexp.MustCompile(`^\s*(status|st)\s*$`), (*console).cmdStatus},
	{regexp.MustCompile(`^\s*(readout|r)\s*$`), (*console).cmdReadout},
	{regexp.MustCompile(`^\s*(peaks|pk)(?:\s+(\w+))?\s*$`), (*console).cmdPeaks},
	{regexp.MustCompile(`^\s*(channel|ch)\s*$`), (*console).cmdChannel},
	{regexp.MustCompile(`^\s*(vmmap|VMMAP)(?:\s+(\S+))?\s*$`), (*console).cmdVmmap},
	{regexp.MustCompile(`^\s*(modules|mods)(?:\s+(\S+))?\s*$`), (*console).cmdModules},
	{regexp.MustCompile(`^\s*(chain)\s*$`), (*console).cmdChain},
	{regexp.MustCompile(`^\s*(scan)\s+(.+)$`), (*console).cmdScan},
	{regexp.MustCompile(`^\s*(db|xxd)\s+` + num + `(?:\s+` + num + `)?$`), (*console).cmdDumpByte},
	{regexp.MustCompile(`^\s*(dq|xxd\s+qword)\s+` + num + `(?:\s+` + num + `)?$`), (*console).cmdDumpQword},
	{regexp.MustCompile(`^\s*(f32|float)\s+` + num + `(?:\s+` + num + `)?$`), (*console).cmdDumpFloat},
	{regexp.MustCompile(`^\s*(help|h|\?)\s*$`), (*console).cmdHelp},
}

func (c *console) cmdExec(req string) error {
	for _, handler := range compiledCmds {
		if m := handler.regex.FindStringSubmatch(req); m != nil {
			return handler.fn(c, m)
		}
	}
	return errors.New("unknown command")
}

func (c *console) cmdHelp(_ interface{}) error {
	fmt.Println(`status            sampler state and last fault
readout           latest speed and components
peaks [channel]   labelled peaks of the current window
channel           toggle graphed channels
vmmap [filter]    memory map of the target
modules [filter]  loaded modules
chain             walk the configured pointer chain
scan <pattern>    search the configured module for a signature
db|dq|f32 <addr> [n]
q                 quit`)
	return nil
}

func (c *console) cmdStatus(_ interface{}) error {
	st := c.s.sampler.Status()
	fmt.Printf("state:   %s%s%s\n", stateColor(st.State), st.State, ColorReset)
	if !c.s.sampler.Running() {
		fmt.Printf("sampler: %sstopped%s\n", ColorRed, ColorReset)
	}
	if st.Fault != mem.FaultNone {
		Printf("fault:   %s\n", st.Fault.String())
	}
	if st.Detail != "" {
		Printf("detail:  %s\n", st.Detail)
	}
	if st.PID != 0 {
		Printf("pid:     %d\n", st.PID)
	}
	if st.Address != 0 {
		Printf("address: 0x%016x\n", st.Address)
	}
	Printf("dropped: %d\n", c.s.sampler.Dropped())
	return nil
}

func (c *console) cmdReadout(_ interface{}) error {
	r, err := render.Call(c.s.renderer, func(sc *render.Scene) (telemetry.Readout, error) {
		return sc.Readout, nil
	})
	if err != nil {
		return err
	}
	fmt.Println(r)
	return nil
}

type peakReport struct {
	channel telemetry.Channel
	newest  time.Time
	peaks   []graph.Peak
}

func (c *console) cmdPeaks(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	var pick *telemetry.Channel
	if args[2] != "" {
		ch, err := telemetry.ParseChannel(args[2])
		if err != nil {
			return err
		}
		pick = &ch
	}

	rep, err := render.Call(c.s.renderer, func(sc *render.Scene) (peakReport, error) {
		rep := peakReport{channel: sc.Channels[0]}
		if pick != nil {
			rep.channel = *pick
		}
		w := sc.Buffer.Snapshot()
		newest, ok := w.Latest()
		if !ok {
			return rep, nil
		}
		o := sc.Projector.Options()
		rep.newest = newest.At
		rep.peaks = graph.FindPeaks(w, rep.channel, newest.At.Add(-o.Retention), newest.At.Add(-o.Delay), o.Separation)
		return rep, nil
	})
	if err != nil {
		return err
	}

	hLine("peaks " + rep.channel.String())
	if len(rep.peaks) == 0 {
		fmt.Println("no peaks")
	}
	for _, p := range rep.peaks {
		fmt.Printf("%s%7.2fs%s  %s%.1f%s\n", ColorGray, -rep.newest.Sub(p.At).Seconds(), ColorReset, ColorYellow, p.Value, ColorReset)
	}
	return nil
}

func (c *console) cmdChannel(_ interface{}) error {
	current, err := render.Call(c.s.renderer, func(sc *render.Scene) ([]telemetry.Channel, error) {
		return append([]telemetry.Channel(nil), sc.Channels...), nil
	})
	if err != nil {
		return err
	}

	items := make([]string, len(telemetry.Channels))
	for i, ch := range telemetry.Channels {
		mark := "[ ]"
		if containsChannel(current, ch) {
			mark = "[x]"
		}
		items[i] = mark + " " + ch.String()
	}
	sel := promptui.Select{Label: "toggle channel", Items: items}
	idx, _, err := sel.Run()
	if err != nil {
		return err
	}

	next := toggleChannel(current, telemetry.Channels[idx])
	if len(next) == 0 {
		return errors.New("at least one channel must stay selected")
	}
	_, err = render.Call(c.s.renderer, func(sc *render.Scene) (struct{}, error) {
		sc.Channels = next
		return struct{}{}, nil
	})
	return err
}

func containsChannel(cs []telemetry.Channel, ch telemetry.Channel) bool {
	for _, c := range cs {
		if c == ch {
			return true
		}
	}
	return false
}

// toggleChannel adds or removes ch, keeping the canonical channel order.
func toggleChannel(cs []telemetry.Channel, ch telemetry.Channel) []telemetry.Channel {
	on := !containsChannel(cs, ch)
	var out []telemetry.Channel
	for _, c := range telemetry.Channels {
		if c == ch {
			if on {
				out = append(out, c)
			}
			continue
		}
		if containsChannel(cs, c) {
			out = append(out, c)
		}
	}
	return out
}

func (c *console) cmdVmmap(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	h, err := c.handle()
	if err != nil {
		return err
	}
	maps, err := c.s.acc.Maps(h)
	if err != nil {
		return err
	}
	for _, m := range maps {
		if args[2] != "" && !strings.Contains(m.Path, args[2]) {
			continue
		}
		color := permColor(m.Perms)
		fmt.Printf("%s0x%016x-0x%016x %s %08x %s%s\n", color, m.Start, m.End, m.Perms, m.Offset, m.Path, ColorReset)
	}
	return nil
}

func permColor(perms string) string {
	if len(perms) < 3 {
		return ColorReset
	}
	r, w, x := perms[0] == 'r', perms[1] == 'w', perms[2] == 'x'
	switch {
	case r && w && x:
		return ColorYellow
	case x:
		return ColorPurple
	case r && w:
		return ColorCyan
	case r:
		return ColorBlue
	}
	return ColorReset
}

func (c *console) cmdModules(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	h, err := c.handle()
	if err != nil {
		return err
	}
	mods, err := c.s.acc.ListModules(h)
	if err != nil {
		return err
	}
	printModules(h, mods, args[2])
	return nil
}

func printModules(h *mem.Handle, mods []mem.ModuleInfo, filter string) {
	hLine(h.String())
	for _, m := range mods {
		if filter != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(filter)) {
			continue
		}
		Printf("0x%016x %8x  %s\n", m.Base, m.Size, m.Name)
	}
}

func (c *console) cmdChain(_ interface{}) error {
	cfg := c.s.cfg
	h, err := c.handle()
	if err != nil {
		return err
	}
	m, ok, err := c.s.acc.FindModule(h, cfg.Module)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("module %s not loaded", cfg.Module)
	}

	base := m.Base + cfg.BaseOffset
	spec, err := cfg.PatternSpec()
	if err != nil {
		return err
	}
	if spec != nil {
		if addr, err := resolve.Scan(c.s.acc, h, m, *spec); err == nil {
			Printf("pattern base 0x%016x (static would be 0x%016x)\n", addr, base)
			base = addr
		} else {
			LogError("%v, using static base", err)
		}
	}

	hops, err := resolve.Trace(c.s.acc, h, base, cfg.Offsets)
	for i, hop := range hops {
		if hop.Err != nil {
			fmt.Printf("[%d] 0x%016x + 0x%x -> %s%v%s\n", i, hop.From-hop.Offset, hop.Offset, ColorRed, hop.Err, ColorReset)
			continue
		}
		fmt.Printf("[%d] 0x%016x + 0x%x -> %s0x%016x%s\n", i, hop.From-hop.Offset, hop.Offset, ColorCyan, hop.Value, ColorReset)
	}
	if err != nil {
		return err
	}

	obj := hops[len(hops)-1].Value
	for _, f := range []struct {
		name string
		off  uint64
	}{{"x", cfg.FieldX}, {"y", cfg.FieldY}, {"z", cfg.FieldZ}} {
		v, err := c.s.acc.ReadFloat(h, obj+f.off)
		if err != nil {
			LogError("%s @ 0x%x: %v", f.name, obj+f.off, err)
			continue
		}
		fmt.Printf("%s @ %s0x%016x%s = %.3f\n", f.name, ColorCyan, obj+f.off, ColorReset, v)
	}
	return nil
}

func (c *console) cmdScan(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	p, err := resolve.ParsePattern(args[2])
	if err != nil {
		return err
	}
	h, err := c.handle()
	if err != nil {
		return err
	}
	m, ok, err := c.s.acc.FindModule(h, c.s.cfg.Module)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("module %s not loaded", c.s.cfg.Module)
	}

	addr, err := resolve.Scan(c.s.acc, h, m, resolve.PatternSpec{Pattern: p})
	if err != nil {
		return err
	}
	Printf("%s found at 0x%016x (%s+0x%x)\n", p.String(), addr, m.Name, addr-m.Base)
	return nil
}
