package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"trialrec/internal/preflight"
)

// checkState is the verdict shown in front of a preflight line.
type checkState int

const (
	checkSkipped checkState = iota
	checkPassed
	checkFailed
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const (
	checkLabelWidth = 28
	checkIndent     = "  "
)

// checkLine renders "  Label:   [PASS] detail", optionally coloured.
func checkLine(label string, state checkState, detail string, colorize bool) string {
	verdict := "[" + checkStateLabel(state) + "]"
	if detail != "" {
		verdict += " " + detail
	}
	line := fmt.Sprintf("%s%-*s %s", checkIndent, checkLabelWidth, label+":", verdict)
	if colorize {
		return checkStateColor(state) + line + ansiReset
	}
	return line
}

func checkStateLabel(state checkState) string {
	switch state {
	case checkPassed:
		return "PASS"
	case checkFailed:
		return "WARN"
	default:
		return "SKIP"
	}
}

func checkStateColor(state checkState) string {
	switch state {
	case checkPassed:
		return ansiGreen
	case checkFailed:
		return ansiYellow
	default:
		return ansiCyan
	}
}

// preflightLines renders a summary line followed by one line per check.
// Failed checks are warnings: a session still starts.
func preflightLines(results []preflight.Result, colorize bool) []string {
	if len(results) == 0 {
		return []string{checkLine("Preflight", checkSkipped, "disabled in config", colorize)}
	}

	failed := len(preflight.Failed(results))
	summary := checkLine("Summary", checkPassed, fmt.Sprintf("%d/%d checks passed", len(results), len(results)), colorize)
	if failed > 0 {
		summary = checkLine("Summary", checkFailed,
			fmt.Sprintf("%d of %d checks failed; sessions will start with warnings", failed, len(results)), colorize)
	}

	lines := make([]string, 0, len(results)+1)
	lines = append(lines, summary)
	for _, result := range results {
		state := checkPassed
		if !result.Passed {
			state = checkFailed
		}
		lines = append(lines, checkLine(result.Name, state, result.Detail, colorize))
	}
	return lines
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiCyan + line + ansiReset
		rule = ansiCyan + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
