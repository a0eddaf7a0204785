package assembly

// referenceIndex locates the turn depth distances are measured from.
// When refContent is non-empty it searches from the end for a user
// turn whose text equals it (the newly appended message). Otherwise,
// or when no match exists, the reference is the last turn; -1 for an
// empty history.
func referenceIndex(turns []Turn, refContent string) int {
	if refContent != "" {
		for i := len(turns) - 1; i >= 0; i-- {
			if turns[i].Role == RoleUser && turns[i].Text() == refContent {
				return i
			}
		}
	}
	return len(turns) - 1
}

// injectDepth interleaves depth-positioned annotations into the
// normalized history.
//
// Annotations are grouped by depth, each group keeping its original
// relative order. Walking the history from the oldest turn, a group
// whose depth equals referenceIndex minus i is emitted immediately
// before the turn at i. Depth 0 is the exception: it is emitted
// immediately after the reference turn, because depth counts backward
// from the newest relevant content. Groups whose depth matches no index are dropped:
// there is no valid insertion point and no content is fabricated.
func injectDepth(turns []Turn, anns []Annotation, refContent string) []Turn {
	groups := make(map[int][]Turn)
	for _, a := range anns {
		if a.Position.effective() != PositionDepth {
			continue
		}
		groups[a.Depth] = append(groups[a.Depth], a.turn())
	}
	if len(groups) == 0 {
		return turns
	}

	refIdx := referenceIndex(turns, refContent)

	out := make([]Turn, 0, len(turns)+len(anns))
	for i, t := range turns {
		if dist := refIdx - i; dist != 0 {
			out = append(out, groups[dist]...)
		}
		out = append(out, t)
		if i == refIdx {
			out = append(out, groups[0]...)
		}
	}
	return out
}
