package assembly

// SlotName is the name given to a history slot synthesized when the
// framework declares none.
const SlotName = "Chat History"

// composeShell lays out the framework entries into an output sequence.
// Every non-slot entry becomes a single-content block; the first entry
// flagged HistorySlot becomes the (empty) slot block and records its
// index. Subsequent slot entries are ignored so the output always
// contains at most one slot. When the framework declares no slot but a
// conversation exists, a slot named [SlotName] is appended at the end.
func composeShell(framework []FrameworkEntry, hasConversation bool) (*Sequence, error) {
	seq := &Sequence{SlotIndex: -1}

	for _, entry := range framework {
		if entry.HistorySlot {
			if seq.SlotIndex >= 0 {
				continue
			}
			seq.SlotIndex = len(seq.Blocks)
			seq.Blocks = append(seq.Blocks, Block{
				Name:       entry.Name,
				Role:       entry.Role,
				Identifier: entry.Identifier,
				Slot:       true,
			})
			continue
		}
		if entry.Content == "" {
			return nil, &ValidationError{
				Field:  "content",
				Entry:  entry.Name,
				Detail: "framework entry has no content and is not the history slot",
			}
		}
		seq.Blocks = append(seq.Blocks, Block{
			Name:       entry.Name,
			Role:       entry.Role,
			Identifier: entry.Identifier,
			Content:    entry.Content,
		})
	}

	if seq.SlotIndex < 0 && hasConversation {
		seq.SlotIndex = len(seq.Blocks)
		seq.Blocks = append(seq.Blocks, Block{
			Name: SlotName,
			Role: RoleSystem,
			Slot: true,
		})
	}

	return seq, nil
}
