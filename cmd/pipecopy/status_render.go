package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var kindColors = map[statusKind]string{
	statusOK:    ansiGreen,
	statusWarn:  ansiYellow,
	statusError: ansiRed,
}

// statusPrinter writes aligned "label: value" lines under section headers,
// colouring them only when the output is a terminal.
type statusPrinter struct {
	w        io.Writer
	colorize bool
}

func newStatusPrinter(w io.Writer) statusPrinter {
	return statusPrinter{w: w, colorize: isTerminal(w)}
}

func (p statusPrinter) section(title string) {
	for _, line := range renderSectionHeader(title, p.colorize) {
		fmt.Fprintln(p.w, line)
	}
}

func (p statusPrinter) line(label string, kind statusKind, value string) {
	fmt.Fprintln(p.w, renderStatusLine(label, kind, value, p.colorize))
}

func renderStatusLine(label string, kind statusKind, value string, colorize bool) string {
	text := fmt.Sprintf("  %-14s %s", label+":", value)
	if color := kindColors[kind]; colorize && color != "" {
		return color + text + ansiReset
	}
	return text
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if !colorize {
		return []string{heading, rule}
	}
	return []string{ansiBlue + heading + ansiReset, ansiBlue + rule + ansiReset}
}

func stateKind(state string) statusKind {
	switch state {
	case "running":
		return statusOK
	case "shutting_down":
		return statusWarn
	case "stopped":
		return statusError
	default:
		return statusInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
