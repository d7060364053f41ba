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

const statusLabelWidth = 16

// statusPrinter renders aligned, optionally colorized status lines.
type statusPrinter struct {
	out      io.Writer
	colorize bool
}

func (p statusPrinter) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if p.colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(p.out, line)
}

func (p statusPrinter) line(label string, kind statusKind, message string) {
	text := fmt.Sprintf("[%s]", kindLabel(kind))
	if message != "" {
		text += " " + message
	}
	rendered := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text)
	if p.colorize {
		if color := kindColor(kind); color != "" {
			rendered = color + rendered + ansiReset
		}
	}
	fmt.Fprintln(p.out, rendered)
}

func (p statusPrinter) blank() {
	fmt.Fprintln(p.out)
}

func kindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func kindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
