// Package character models the JSON documents a character is defined
// by (the character card, the generation preset, the world book, and
// the optional author's note) and translates them into the framework
// entries and annotations the assembly engine consumes.
//
// The formats follow the de facto character-card conventions used by
// frontend tooling: a preset carries an ordered prompt list plus a
// prompt_order section that enables and orders entries by identifier;
// a world book is a map of entries with position/depth placement
// metadata and trigger keys.
package character

import (
	"encoding/json"
	"fmt"
)

// Card is a character card. The well-known identifier-mapped fields
// (description, personality, scenario, dialogue examples) are pulled
// into the framework by [BuildFramework]; FirstMes seeds a new
// conversation's greeting turn.
type Card struct {
	Name        string    `json:"name"`
	FirstMes    string    `json:"first_mes"`
	Description string    `json:"description"`
	Personality string    `json:"personality"`
	Scenario    string    `json:"scenario"`
	MesExample  string    `json:"mes_example"`
	Data        *CardData `json:"data,omitempty"`
}

// RegexScripts returns the card's embedded regex scripts, if any.
func (c Card) RegexScripts() []RegexScript {
	if c.Data == nil {
		return nil
	}
	return c.Data.Extensions.RegexScripts
}

// CardData holds the card's nested extension payload.
type CardData struct {
	Extensions CardExtensions `json:"extensions"`
}

// CardExtensions carries frontend extensions embedded in a card.
// Only regex scripts are honored here.
type CardExtensions struct {
	RegexScripts []RegexScript `json:"regex_scripts"`
}

// RegexScript is a card-supplied find/replace rule applied to prompt
// text during macro expansion. FindRegex uses the JS-style
// "/pattern/" notation; Flags may contain "g", "i", "m", "s".
type RegexScript struct {
	ScriptName    string `json:"scriptName"`
	FindRegex     string `json:"findRegex"`
	ReplaceString string `json:"replaceString"`
	Flags         string `json:"flags"`
}

// Preset is a generation preset: the prompt blocks and the order/enable
// metadata that arranges them.
type Preset struct {
	Prompts     []Prompt      `json:"prompts"`
	PromptOrder []PromptOrder `json:"prompt_order"`
}

// Prompt is one preset prompt block. InjectionPosition 1 marks the
// prompt as depth-injected rather than a static framework entry.
type Prompt struct {
	Name              string `json:"name"`
	Content           string `json:"content"`
	Role              string `json:"role"`
	Identifier        string `json:"identifier"`
	Enable            *bool  `json:"enable,omitempty"` // nil means enabled
	InjectionPosition int    `json:"injection_position,omitempty"`
	InjectionDepth    *int   `json:"injection_depth,omitempty"`
}

func (p Prompt) enabled() bool {
	return p.Enable == nil || *p.Enable
}

// PromptOrder wraps one ordered identifier list. Presets ship a list
// of these; only the first is honored.
type PromptOrder struct {
	Order []OrderRef `json:"order"`
}

// OrderRef enables and positions one prompt by identifier.
type OrderRef struct {
	Identifier string `json:"identifier"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// Book is a world book: keyed entries with placement metadata.
type Book struct {
	Entries map[string]BookEntry `json:"entries"`
}

// BookEntry is one world-book entry. Position selects placement:
// 0/1 splice around the character description in the framework,
// 2/3 anchor to the author's note, 4 is depth-relative.
type BookEntry struct {
	Comment    string   `json:"comment"`
	Content    string   `json:"content"`
	Disable    bool     `json:"disable"`
	Position   int      `json:"position"`
	Constant   bool     `json:"constant"`
	Key        []string `json:"key"`
	Order      int      `json:"order"`
	Depth      *int     `json:"depth,omitempty"` // nil means depth 1
	Vectorized bool     `json:"vectorized"`
}

// AuthorNote is the optional out-of-band note injected near the end of
// the conversation. CharName and UserName also feed macro expansion.
type AuthorNote struct {
	Content        string `json:"content"`
	Role           string `json:"role"`
	InjectionDepth *int   `json:"injection_depth,omitempty"` // nil means depth 0
	CharName       string `json:"charname"`
	UserName       string `json:"username"`
}

// Documents bundles the per-conversation character definition.
// Note may be nil.
type Documents struct {
	Card   Card
	Preset Preset
	Book   Book
	Note   *AuthorNote
}

// DecodeDocuments parses the raw JSON documents. card, preset and book
// are required; note may be empty.
func DecodeDocuments(card, preset, book, note []byte) (*Documents, error) {
	var d Documents
	if err := json.Unmarshal(card, &d.Card); err != nil {
		return nil, fmt.Errorf("parse character card: %w", err)
	}
	if err := json.Unmarshal(preset, &d.Preset); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	if err := json.Unmarshal(book, &d.Book); err != nil {
		return nil, fmt.Errorf("parse world book: %w", err)
	}
	if len(note) > 0 {
		var n AuthorNote
		if err := json.Unmarshal(note, &n); err != nil {
			return nil, fmt.Errorf("parse author note: %w", err)
		}
		d.Note = &n
	}
	return &d, nil
}
