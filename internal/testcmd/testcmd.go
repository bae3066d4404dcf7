// Package testcmd synthesizes the narrowest command that re-runs the tests
// relevant to a change.
package testcmd

import (
	"regexp"
	"strings"
)

// LearnedTemplates are project-specific command templates captured once by
// an external discovery step. {files} expands to the space-separated test
// files and {pattern} to the test pattern. A value is only usable when both
// templates are set.
type LearnedTemplates struct {
	Files   string `json:"files" yaml:"files"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Usable reports whether both templates are present.
func (t *LearnedTemplates) Usable() bool {
	return t != nil && strings.TrimSpace(t.Files) != "" && strings.TrimSpace(t.Pattern) != ""
}

// Request holds everything the synthesizer needs.
type Request struct {
	// Framework is the detected test framework identifier, e.g. "vitest".
	Framework string
	// TestFiles are discovered test files, possibly empty.
	TestFiles []string
	// Pattern is the fallback pattern when no files were discovered.
	Pattern string
	// TestCommand is the project's full test command. Empty means the
	// project has no test capability.
	TestCommand string
	Learned     *LearnedTemplates
}

// Resolution names which rule produced a command.
type Resolution string

const (
	ResolvedLearned   Resolution = "learned"
	ResolvedFramework Resolution = "framework"
	ResolvedGeneric   Resolution = "generic"
	ResolvedFull      Resolution = "full"
)

// Command is a synthesized test command.
type Command struct {
	Command    string
	Resolution Resolution
}

// Synthesize returns the command to run, or ok=false when the project has
// no test command at all. With nothing selected it returns the full suite.
func Synthesize(req Request) (cmd Command, ok bool) {
	base := strings.TrimSpace(req.TestCommand)
	if base == "" {
		return Command{}, false
	}

	files := nonEmpty(req.TestFiles)
	pattern := strings.TrimSpace(req.Pattern)
	if len(files) == 0 && pattern == "" {
		return Command{Command: base, Resolution: ResolvedFull}, true
	}

	if req.Learned.Usable() {
		if len(files) > 0 {
			return Command{Command: expand(req.Learned.Files, "{files}", quoteAll(files)), Resolution: ResolvedLearned}, true
		}
		return Command{Command: expand(req.Learned.Pattern, "{pattern}", quote(pattern)), Resolution: ResolvedLearned}, true
	}

	if fw, found := Lookup(req.Framework); found {
		if len(files) > 0 && fw.Files != nil {
			if c := fw.Files(files); c != "" {
				return Command{Command: c, Resolution: ResolvedFramework}, true
			}
		}
		if pattern != "" && fw.Pattern != nil {
			if c := fw.Pattern(pattern); c != "" {
				return Command{Command: c, Resolution: ResolvedFramework}, true
			}
		}
	}

	arg := quote(pattern)
	if len(files) > 0 {
		arg = quoteAll(files)
	}
	if c, applied := appendForWrapper(base, arg); applied {
		return Command{Command: c, Resolution: ResolvedGeneric}, true
	}
	return Command{Command: base, Resolution: ResolvedFull}, true
}

// BuildSelectiveCommand is Synthesize reduced to a plain string.
func BuildSelectiveCommand(framework string, files []string, pattern, testCommand string, learned *LearnedTemplates) (string, bool) {
	c, ok := Synthesize(Request{
		Framework:   framework,
		TestFiles:   files,
		Pattern:     pattern,
		TestCommand: testCommand,
		Learned:     learned,
	})
	return c.Command, ok
}

// wrapperSeparators lists package-manager wrappers and how extra args are
// forwarded to the underlying script.
var wrapperSeparators = map[string]string{
	"npm":  " -- ",
	"pnpm": " ",
	"yarn": " ",
	"bun":  " ",
}

func appendForWrapper(base, arg string) (string, bool) {
	fields := strings.Fields(base)
	sep, ok := wrapperSeparators[fields[0]]
	if !ok {
		return "", false
	}
	if sep == " -- " && strings.Contains(base, " -- ") {
		sep = " "
	}
	return base + sep + arg, true
}

func expand(template, placeholder, value string) string {
	return strings.ReplaceAll(template, placeholder, value)
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// quote single-quotes s for sh unless every byte is shell-safe.
func quote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func quoteAll(in []string) string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = quote(s)
	}
	return strings.Join(out, " ")
}
