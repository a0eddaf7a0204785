package assembly

// DefaultWindow is the trailing-window size applied to the history
// when the caller does not supply one.
const DefaultWindow = 15

// Normalize canonicalizes raw conversation turns for injection.
//
// It drops turns injected by a previous assembly pass, folds every
// remaining role onto user or model, keeps only the last window turns
// (order preserved), and appends userMessage as the newest user turn
// when non-empty. The second return value is the reference content for
// depth measurement: the new user message when supplied, otherwise
// empty.
//
// Normalize never reorders turns and never mutates its input. Because
// injected turns are always stripped first, re-running it over an
// already-assembled transcript reproduces the pre-injection history,
// which is what makes repeated assembly idempotent.
func Normalize(history []Turn, window int, userMessage string) ([]Turn, string) {
	if window < 1 {
		window = DefaultWindow
	}

	kept := make([]Turn, 0, len(history)+1)
	for _, t := range history {
		if t.Injected {
			continue
		}
		t.Role = NormalizeRole(t.Role)
		kept = append(kept, t)
	}

	if len(kept) > window {
		kept = kept[len(kept)-window:]
	}

	if userMessage != "" {
		kept = append(kept, Turn{
			Role:  RoleUser,
			Parts: []string{userMessage},
		})
	}

	return kept, userMessage
}
