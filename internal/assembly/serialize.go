package assembly

import "strings"

// Labels configures the speaker labels used when flattening the slot
// turns to text.
type Labels struct {
	User  string
	Model string
}

// DefaultLabels are used when a Labels field is left empty.
var DefaultLabels = Labels{User: "User", Model: "Assistant"}

func (l Labels) pick(r Role) string {
	user, model := l.User, l.Model
	if user == "" {
		user = DefaultLabels.User
	}
	if model == "" {
		model = DefaultLabels.Model
	}
	if r == RoleUser {
		return user
	}
	return model
}

// Flatten renders an assembled sequence as a single plain-text
// transcript. Static blocks render as their raw content; the slot
// renders each turn as "<label>: <content>". Blocks (and turns) that
// are empty after trimming are omitted; the surviving pieces are
// joined by blank lines. Flatten is total over any valid sequence and
// has no side effects.
func Flatten(seq *Sequence, labels Labels) string {
	if seq == nil {
		return ""
	}

	var pieces []string
	for _, b := range seq.Blocks {
		var text string
		if b.Slot {
			var lines []string
			for _, t := range b.Turns {
				content := strings.TrimSpace(t.Text())
				if content == "" {
					continue
				}
				lines = append(lines, labels.pick(NormalizeRole(t.Role))+": "+content)
			}
			text = strings.Join(lines, "\n\n")
		} else {
			text = strings.TrimSpace(b.Content)
		}
		if text == "" {
			continue
		}
		pieces = append(pieces, text)
	}

	return strings.Join(pieces, "\n\n")
}
