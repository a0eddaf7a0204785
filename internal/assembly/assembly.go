// Package assembly builds the ordered message sequence sent to an LLM
// provider from three inputs: a static framework of instruction blocks,
// a trimmed conversation history, and a set of annotations injected at
// computed positions inside that history.
//
// The pipeline is deterministic and free of side effects. [Assemble]
// composes the framework shell, normalizes the raw history (stripping
// turns injected by any previous call, so repeated assembly over a
// growing transcript never accumulates duplicates), then runs two
// injection passes: depth-relative annotations are interleaved at
// signed distances from the reference turn, and anchor-relative
// annotations are placed immediately around the anchor-marker turn.
// [Flatten] renders the result as plain text for providers that take a
// single prompt string instead of structured turns.
//
// Nothing here evaluates trigger keywords, calls a model, or persists
// state. Keyword filtering lives in the trigger package; transport in
// llm; persistence in session.
package assembly

// Input carries everything one assembly call consumes. All fields are
// treated as read-only snapshots; Assemble never mutates them.
type Input struct {
	// Framework is the ordered static shell. At most one entry should
	// carry HistorySlot; when several do, the first wins and the rest
	// are ignored.
	Framework []FrameworkEntry

	// Annotations are the active annotation entries for this call. The
	// caller has already done any trigger filtering; everything here is
	// placed (or dropped when no valid insertion point exists).
	Annotations []Annotation

	// History is the raw persisted conversation, oldest first. Turns
	// flagged Injected are stripped before use.
	History []Turn

	// UserMessage, when non-empty, is appended as the newest user turn
	// and becomes the reference content for depth measurement.
	UserMessage string

	// Window is the trailing-window size applied to History. Values
	// less than 1 fall back to DefaultWindow.
	Window int
}

// Assemble runs the full pipeline and returns the assembled sequence.
//
// The returned sequence contains exactly one history slot whenever a
// conversation (persisted turns or a pending user message) exists: the
// slot declared by the framework, or one synthesized at the end when
// the framework declares none. An empty framework with no conversation
// yields an empty sequence.
//
// The only error conditions are structural: an annotation position
// outside [0,4] or a framework entry that has neither content nor the
// history-slot flag. Both surface as a *ValidationError. Every other
// degenerate input (empty history, unmatched depths, missing anchor)
// degrades silently as documented on the individual passes.
func Assemble(in Input) (*Sequence, error) {
	if err := validateAnnotations(in.Annotations); err != nil {
		return nil, err
	}

	turns, ref := Normalize(in.History, in.Window, in.UserMessage)
	hasConversation := len(turns) > 0 || in.UserMessage != ""

	seq, err := composeShell(in.Framework, hasConversation)
	if err != nil {
		return nil, err
	}

	if seq.SlotIndex >= 0 {
		filled := injectDepth(turns, in.Annotations, ref)
		filled = injectAnchor(filled, in.Annotations)
		seq.Blocks[seq.SlotIndex].Turns = filled
	}

	return seq, nil
}

func validateAnnotations(anns []Annotation) error {
	for _, a := range anns {
		if a.Position < 0 || a.Position > PositionDepth {
			return &ValidationError{
				Field:  "position",
				Entry:  a.Name,
				Detail: "must be in [0,4]",
			}
		}
	}
	return nil
}
