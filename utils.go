package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"vecScope/telemetry"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

func LogError(msg string, a ...interface{}) {
	fmt.Printf("%s[ERROR]%s %s\n", ColorRed, ColorReset, fmt.Sprintf(msg, a...))
}

func Printf(msg string, a ...interface{}) {
	msg = strings.ReplaceAll(msg, "%d", "\033[36m%d\033[0m")
	msg = strings.ReplaceAll(msg, "0x%016x", "\033[36m0x%016x\033[0m")
	msg = strings.ReplaceAll(msg, "%016x", "\033[36m%016x\033[0m")
	msg = strings.ReplaceAll(msg, "%x", "\033[36m%x\033[0m")
	msg = strings.ReplaceAll(msg, "%s", "\033[32m%s\033[0m")

	fmt.Printf(msg, a...)
}

// termSize falls back to 80x24 when stdout is not a terminal.
func termSize() (w, h int) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 80, 24
}

func hLine(msg string) {
	w, _ := termSize()
	pad := (w - len(msg) - 2) / 2
	if pad < 0 {
		pad = 0
	}
	fmt.Println(strings.Repeat("-", pad) + "[" + msg + "]" + strings.Repeat("-", pad))
}

func stateColor(s telemetry.State) string {
	switch s {
	case telemetry.Linked:
		return ColorGreen
	case telemetry.Searching, telemetry.ModuleWaiting:
		return ColorYellow
	}
	return ColorRed
}
