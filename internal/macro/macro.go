// Package macro performs the text transforms applied to an assembled
// sequence immediately before it goes on the wire: placeholder
// substitution ({{char}}, {{user}}, {{lastMessage}}) and the
// card-supplied regex scripts. Transforms are best-effort: a script
// that fails to compile is skipped, never fatal, so one broken rule in
// a character card cannot take a conversation down.
package macro

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/quillchat/quill/internal/assembly"
	"github.com/quillchat/quill/internal/character"
)

// Vars are the placeholder values substituted into prompt text.
type Vars struct {
	Char        string
	User        string
	LastMessage string
}

// Expander applies placeholder substitution and regex scripts.
type Expander struct {
	vars    Vars
	scripts []script
	logger  *slog.Logger
}

type script struct {
	name    string
	re      *regexp.Regexp
	replace string
	global  bool
}

// New builds an Expander from the placeholder values and the card's
// regex scripts. Scripts that fail to compile are logged and dropped.
func New(vars Vars, scripts []character.RegexScript, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Expander{vars: vars, logger: logger}

	for _, s := range scripts {
		if s.FindRegex == "" {
			continue
		}
		compiled, global, err := compileScript(s)
		if err != nil {
			logger.Warn("skipping regex script",
				"script", s.ScriptName, "pattern", s.FindRegex, "error", err)
			continue
		}
		e.scripts = append(e.scripts, script{
			name:    s.ScriptName,
			re:      compiled,
			replace: jsReplacement(s.ReplaceString),
			global:  global,
		})
	}
	return e
}

// compileScript converts a JS-style "/pattern/" find regex with flag
// letters into a Go regexp. The g flag is returned separately since Go
// expresses it through the choice of replace call rather than a flag.
func compileScript(s character.RegexScript) (*regexp.Regexp, bool, error) {
	pattern := s.FindRegex
	if strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) > 1 {
		pattern = pattern[1 : len(pattern)-1]
	}

	var inline string
	global := false
	for _, f := range s.Flags {
		switch f {
		case 'g':
			global = true
		case 'i', 'm', 's':
			inline += string(f)
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	return re, global, err
}

// jsReplacement rewrites JS backreference syntax ($1) into Go template
// syntax (${1}) so multi-digit groups and trailing text behave.
var jsRefRe = regexp.MustCompile(`\$(\d+)`)

func jsReplacement(s string) string {
	return jsRefRe.ReplaceAllString(s, "${$1}")
}

// Expand applies placeholders, then the regex scripts, to one string.
func (e *Expander) Expand(text string) string {
	text = strings.ReplaceAll(text, "{{char}}", e.vars.Char)
	text = strings.ReplaceAll(text, "{{user}}", e.vars.User)
	text = strings.ReplaceAll(text, "{{lastMessage}}", e.vars.LastMessage)

	for _, s := range e.scripts {
		if s.global {
			text = s.re.ReplaceAllString(text, s.replace)
			continue
		}
		if loc := s.re.FindStringIndex(text); loc != nil {
			text = text[:loc[0]] + s.re.ReplaceAllString(text[loc[0]:loc[1]], s.replace) + text[loc[1]:]
		}
	}
	return text
}

// ExpandSequence returns a copy of the sequence with every static
// block and every slot turn expanded. The input is never mutated.
func (e *Expander) ExpandSequence(seq *assembly.Sequence) *assembly.Sequence {
	if seq == nil {
		return nil
	}

	out := &assembly.Sequence{
		Blocks:    make([]assembly.Block, len(seq.Blocks)),
		SlotIndex: seq.SlotIndex,
	}
	for i, b := range seq.Blocks {
		nb := b
		if b.Slot {
			nb.Turns = make([]assembly.Turn, len(b.Turns))
			for j, t := range b.Turns {
				nt := t
				nt.Parts = make([]string, len(t.Parts))
				for k, p := range t.Parts {
					nt.Parts[k] = e.Expand(p)
				}
				nb.Turns[j] = nt
			}
		} else {
			nb.Content = e.Expand(b.Content)
		}
		out.Blocks[i] = nb
	}
	return out
}
