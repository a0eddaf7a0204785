package macro

import (
	"log/slog"
	"testing"

	"github.com/quillchat/quill/internal/assembly"
	"github.com/quillchat/quill/internal/character"
)

func TestExpandPlaceholders(t *testing.T) {
	e := New(Vars{Char: "Saber", User: "Ryn", LastMessage: "hello"}, nil, slog.Default())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"char", "I am {{char}}.", "I am Saber."},
		{"user", "Greetings, {{user}}.", "Greetings, Ryn."},
		{"last message", "You said: {{lastMessage}}", "You said: hello"},
		{"multiple", "{{char}} meets {{user}}", "Saber meets Ryn"},
		{"no placeholders", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Expand(tt.in); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandRegexScripts(t *testing.T) {
	tests := []struct {
		name    string
		scripts []character.RegexScript
		in      string
		want    string
	}{
		{
			name: "global replacement",
			scripts: []character.RegexScript{
				{ScriptName: "dashes", FindRegex: "/--/", ReplaceString: "—", Flags: "g"},
			},
			in:   "a--b--c",
			want: "a—b—c",
		},
		{
			name: "non-global replaces first only",
			scripts: []character.RegexScript{
				{ScriptName: "first", FindRegex: "/x/", ReplaceString: "y"},
			},
			in:   "x x x",
			want: "y x x",
		},
		{
			name: "case-insensitive flag",
			scripts: []character.RegexScript{
				{ScriptName: "ci", FindRegex: "/HELLO/", ReplaceString: "hi", Flags: "gi"},
			},
			in:   "Hello hello HELLO",
			want: "hi hi hi",
		},
		{
			name: "backreference",
			scripts: []character.RegexScript{
				{ScriptName: "wrap", FindRegex: `/\*(\w+)\*/`, ReplaceString: "<em>$1</em>", Flags: "g"},
			},
			in:   "so *bold* of you",
			want: "so <em>bold</em> of you",
		},
		{
			name: "invalid pattern skipped",
			scripts: []character.RegexScript{
				{ScriptName: "broken", FindRegex: "/[unclosed/", ReplaceString: "x", Flags: "g"},
				{ScriptName: "ok", FindRegex: "/b/", ReplaceString: "B", Flags: "g"},
			},
			in:   "abc",
			want: "aBc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Vars{}, tt.scripts, slog.Default())
			if got := e.Expand(tt.in); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandSequence(t *testing.T) {
	e := New(Vars{Char: "Saber", User: "Ryn"}, nil, slog.Default())

	seq := &assembly.Sequence{
		Blocks: []assembly.Block{
			{Name: "main", Content: "You are {{char}}."},
			{Slot: true, Turns: []assembly.Turn{
				{Role: assembly.RoleUser, Parts: []string{"Hi, I am {{user}}."}},
			}},
		},
		SlotIndex: 1,
	}

	got := e.ExpandSequence(seq)

	if got.Blocks[0].Content != "You are Saber." {
		t.Errorf("block content = %q", got.Blocks[0].Content)
	}
	if got.Blocks[1].Turns[0].Text() != "Hi, I am Ryn." {
		t.Errorf("turn text = %q", got.Blocks[1].Turns[0].Text())
	}

	// Input must stay untouched.
	if seq.Blocks[0].Content != "You are {{char}}." {
		t.Error("input block mutated")
	}
	if seq.Blocks[1].Turns[0].Text() != "Hi, I am {{user}}." {
		t.Error("input turn mutated")
	}
}
