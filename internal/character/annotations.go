package character

import "github.com/quillchat/quill/internal/assembly"

// Defaults applied when a document omits a depth field. World-book and
// preset injections land one turn above the reference; the author's
// note lands directly after it.
const (
	defaultEntryDepth = 1
	defaultNoteDepth  = 0
)

// AuthorNoteName names the annotation synthesized from the author's
// note document.
const AuthorNoteName = "Author Note"

// ExtractAnnotations collects every dynamically placed entry from the
// documents as assembly annotations, in a deterministic order:
// depth-injected preset prompts first, then the author's note, then
// world-book entries.
//
// Preset prompts qualify when they carry injection_position=1 and
// their identifier is explicitly enabled in prompt_order. World-book
// entries qualify when not disabled and positioned 2, 3 or 4;
// position-2/3 entries are skipped entirely when no author's note
// exists, since nothing would anchor them. The author's note itself
// becomes a depth annotation carrying the anchor flag, so the
// engine's anchor pass attaches position-2/3 entries to it.
func ExtractAnnotations(d *Documents) []assembly.Annotation {
	var anns []assembly.Annotation

	for _, p := range d.Preset.Prompts {
		if p.InjectionPosition != 1 || !orderEnabled(d.Preset, p.Identifier) {
			continue
		}
		anns = append(anns, assembly.Annotation{
			Name:       p.Name,
			Content:    p.Content,
			Role:       promptRole(p.Role),
			Position:   assembly.PositionDepth,
			Depth:      depthOrDefault(p.InjectionDepth, defaultEntryDepth),
			Constant:   true,
			Identifier: p.Identifier,
		})
	}

	if d.Note != nil && d.Note.Content != "" {
		anns = append(anns, assembly.Annotation{
			Name:         AuthorNoteName,
			Content:      d.Note.Content,
			Role:         promptRole(d.Note.Role),
			Position:     assembly.PositionDepth,
			Depth:        depthOrDefault(d.Note.InjectionDepth, defaultNoteDepth),
			AnchorMarker: true,
			Constant:     true,
		})
	}

	for _, e := range sortedEntries(d.Book) {
		if e.Disable {
			continue
		}
		switch e.Position {
		case 2, 3:
			if d.Note == nil || d.Note.Content == "" {
				continue
			}
		case 4:
		default:
			continue
		}
		anns = append(anns, assembly.Annotation{
			Name:        e.Comment,
			Content:     e.Content,
			Role:        assembly.RoleUser,
			Position:    assembly.Position(e.Position),
			Depth:       depthOrDefault(e.Depth, defaultEntryDepth),
			Constant:    e.Constant,
			TriggerKeys: e.Key,
		})
	}

	return anns
}

func depthOrDefault(d *int, def int) int {
	if d == nil {
		return def
	}
	return *d
}
