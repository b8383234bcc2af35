package main

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/chzyer/readline"

	"vecScope/mem"
	"vecScope/telemetry"
)

// console inspects the target with its own handle so it never shares
// state with the sampler goroutine.
type console struct {
	s *session
	h *mem.Handle
}

func newConsole(s *session) *console {
	return &console{s: s}
}

func (c *console) handle() (*mem.Handle, error) {
	if c.h.Valid() && c.s.acc.Alive(c.h) {
		return c.h, nil
	}
	h, err := c.s.acc.Attach(c.s.cfg.Process)
	if err != nil {
		return nil, err
	}
	c.h = h
	return h, nil
}

// exec runs one command. A panicking handler is written to the crash
// file and reported as an error; the console keeps going.
func (c *console) exec(req string) (err error) {
	defer func() {
		if x := recover(); x != nil {
			report("console", x, debug.Stack())
			err = fmt.Errorf("%q panicked: %v", req, x)
		}
	}()
	return c.cmdExec(req)
}

func (c *console) prompt() string {
	st := c.s.sampler.Status()
	if st.State == telemetry.Linked {
		return fmt.Sprintf("[%svecScope%s:%s0x%x%s]$ ", ColorCyan, ColorReset, ColorCyan, st.Address, ColorReset)
	}
	return fmt.Sprintf("[vecScope:%s%s%s]$ ", stateColor(st.State), st.State, ColorReset)
}

func (c *console) Interactive() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "[vecScope]$ ",
		HistoryFile:       "/tmp/vecscope_history.txt",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			switch r {
			case readline.CharCtrlZ:
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		LogError("readline: %v", err)
		return
	}
	defer rl.Close()

	prev := ""
	for {
		rl.SetPrompt(c.prompt())
		req, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			LogError("%v", err)
			break
		}

		if req == "" {
			req = prev
		}
		if req == "" {
			continue
		}
		if req == "q" || req == "quit" || req == "exit" {
			break
		}
		prev = req
		if err := c.exec(req); err != nil {
			LogError("%v", err)
		}
	}
}
