package llm

import (
	"strings"

	"github.com/quillchat/quill/internal/assembly"
)

// FromSequence converts an assembled sequence into the flat message
// list providers consume. Static blocks become one message each; the
// history slot contributes one message per turn. System-role content
// is folded into the user role because the Gemini wire format only
// accepts user and model, and the other providers tolerate the same
// two-role shape. Empty blocks and turns are dropped.
func FromSequence(seq *assembly.Sequence) []Message {
	if seq == nil {
		return nil
	}

	var out []Message
	for _, b := range seq.Blocks {
		if b.Slot {
			for _, t := range b.Turns {
				text := t.Text()
				if strings.TrimSpace(text) == "" {
					continue
				}
				out = append(out, Message{Role: foldRole(string(t.Role)), Content: text})
			}
			continue
		}
		if strings.TrimSpace(b.Content) == "" {
			continue
		}
		out = append(out, Message{Role: foldRole(string(b.Role)), Content: b.Content})
	}
	return out
}

func foldRole(role string) string {
	if role == "user" || role == "system" || role == "" {
		return "user"
	}
	return "model"
}
