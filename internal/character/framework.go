package character

import (
	"sort"

	"github.com/quillchat/quill/internal/assembly"
)

// Identifiers with well-known meanings inside a preset.
const (
	idCharDescription  = "charDescription"
	idCharPersonality  = "charPersonality"
	idScenario         = "scenario"
	idDialogueExamples = "dialogueExamples"
	idChatHistory      = "chatHistory"
)

// BuildFramework arranges the preset's static prompts into the ordered
// framework the assembly engine consumes.
//
// Prompts flagged injection_position=1 are excluded (they become
// annotations, see [ExtractAnnotations]), as are disabled prompts and
// prompts whose identifier the prompt_order list omits or disables.
// The well-known identifiers pull their content from the character
// card; the chatHistory prompt becomes the history slot. World-book
// entries with position 0 or 1 are spliced immediately before or
// after the character-description entry, ordered by their insertion
// order. Entries whose resolved content is empty are dropped so the
// framework stays structurally valid.
func BuildFramework(d *Documents) []assembly.FrameworkEntry {
	byID := make(map[string]assembly.FrameworkEntry)

	for _, p := range d.Preset.Prompts {
		if p.InjectionPosition == 1 || !p.enabled() || p.Identifier == "" {
			continue
		}

		entry := assembly.FrameworkEntry{
			Name:       p.Name,
			Role:       promptRole(p.Role),
			Identifier: p.Identifier,
		}

		switch p.Identifier {
		case idChatHistory:
			entry.Role = assembly.RoleSystem
			entry.HistorySlot = true
		case idCharDescription:
			entry.Content = d.Card.Description
		case idCharPersonality:
			entry.Content = d.Card.Personality
		case idScenario:
			entry.Content = d.Card.Scenario
		case idDialogueExamples:
			entry.Content = d.Card.MesExample
		default:
			entry.Content = p.Content
		}

		byID[p.Identifier] = entry
	}

	var framework []assembly.FrameworkEntry
	for _, id := range orderedIdentifiers(d.Preset, true) {
		entry, ok := byID[id]
		if !ok {
			continue
		}
		if entry.Content == "" && !entry.HistorySlot {
			continue
		}
		framework = append(framework, entry)
	}

	return spliceLoreEntries(framework, d.Book)
}

// promptRole maps a preset role string onto an assembly role, with the
// user default the formats assume.
func promptRole(role string) assembly.Role {
	switch role {
	case "system":
		return assembly.RoleSystem
	case "model", "assistant":
		return assembly.RoleModel
	default:
		return assembly.RoleUser
	}
}

// orderedIdentifiers returns the identifiers of the first prompt_order
// list that are enabled. defaultEnabled controls how an absent enabled
// field reads: the framework layout treats it as enabled, while
// annotation extraction requires an explicit true.
func orderedIdentifiers(p Preset, defaultEnabled bool) []string {
	if len(p.PromptOrder) == 0 {
		return nil
	}
	var ids []string
	for _, ref := range p.PromptOrder[0].Order {
		enabled := defaultEnabled
		if ref.Enabled != nil {
			enabled = *ref.Enabled
		}
		if enabled {
			ids = append(ids, ref.Identifier)
		}
	}
	return ids
}

// orderEnabled reports whether the identifier is explicitly enabled in
// the first prompt_order list.
func orderEnabled(p Preset, identifier string) bool {
	if len(p.PromptOrder) == 0 {
		return false
	}
	for _, ref := range p.PromptOrder[0].Order {
		if ref.Identifier == identifier {
			return ref.Enabled != nil && *ref.Enabled
		}
	}
	return false
}

// spliceLoreEntries inserts world-book position-0/1 entries around the
// character-description framework entry. With no description entry in
// the framework the entries have no insertion point and are dropped.
func spliceLoreEntries(framework []assembly.FrameworkEntry, book Book) []assembly.FrameworkEntry {
	var before, after []assembly.FrameworkEntry
	for _, e := range sortedEntries(book) {
		if e.Disable || e.Content == "" || (e.Position != 0 && e.Position != 1) {
			continue
		}
		fe := assembly.FrameworkEntry{
			Name:    e.Comment,
			Role:    assembly.RoleUser,
			Content: e.Content,
		}
		if e.Position == 0 {
			before = append(before, fe)
		} else {
			after = append(after, fe)
		}
	}
	if len(before) == 0 && len(after) == 0 {
		return framework
	}

	descIdx := -1
	for i, e := range framework {
		if e.Identifier == idCharDescription {
			descIdx = i
			break
		}
	}
	if descIdx < 0 {
		return framework
	}

	out := make([]assembly.FrameworkEntry, 0, len(framework)+len(before)+len(after))
	out = append(out, framework[:descIdx]...)
	out = append(out, before...)
	out = append(out, framework[descIdx])
	out = append(out, after...)
	out = append(out, framework[descIdx+1:]...)
	return out
}

// sortedEntries flattens the book's entry map into a deterministic
// slice ordered by insertion order, then key. Map iteration order must
// never leak into prompt layout.
func sortedEntries(book Book) []BookEntry {
	keys := make([]string, 0, len(book.Entries))
	for k := range book.Entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := book.Entries[keys[i]], book.Entries[keys[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return keys[i] < keys[j]
	})

	entries := make([]BookEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, book.Entries[k])
	}
	return entries
}
