package assembly

// injectAnchor places anchor-positioned annotations around the first
// turn flagged AnchorMarker in the (already depth-injected) sequence:
// position-2 entries immediately before it, position-3 entries
// immediately after, each group in its original order. When no anchor
// exists the pass is a no-op and the entries are dropped rather than
// appended elsewhere.
//
// The output is built in a single left-to-right pass against the
// original indices, so insertions never shift each other.
func injectAnchor(turns []Turn, anns []Annotation) []Turn {
	anchor := -1
	for i, t := range turns {
		if t.AnchorMarker {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return turns
	}

	var before, after []Turn
	for _, a := range anns {
		switch a.Position.effective() {
		case PositionBeforeAnchor:
			before = append(before, a.turn())
		case PositionAfterAnchor:
			after = append(after, a.turn())
		}
	}
	if len(before) == 0 && len(after) == 0 {
		return turns
	}

	out := make([]Turn, 0, len(turns)+len(before)+len(after))
	for i, t := range turns {
		if i == anchor {
			out = append(out, before...)
			out = append(out, t)
			out = append(out, after...)
			continue
		}
		out = append(out, t)
	}
	return out
}
