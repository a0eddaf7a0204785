// Package trigger decides which annotations are active for a given
// assembly call. Constant annotations always pass; keyed annotations
// pass only when one of their trigger keys appears in the current
// prompt corpus. Matching is case-insensitive substring search; the
// same loose matching character frontends use, chosen so a key fires
// on inflected forms without a tokenizer.
package trigger

import (
	"strings"

	"github.com/quillchat/quill/internal/assembly"
)

// Corpus flattens an assembled sequence into one lowercase string for
// key matching: static block content plus every slot turn's text.
func Corpus(seq *assembly.Sequence) string {
	if seq == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range seq.Blocks {
		if b.Slot {
			for _, t := range b.Turns {
				sb.WriteString(t.Text())
				sb.WriteByte(' ')
			}
			continue
		}
		sb.WriteString(b.Content)
		sb.WriteByte(' ')
	}
	return strings.ToLower(sb.String())
}

// Filter returns the annotations active against the corpus, preserving
// their order. An annotation passes when Constant is set, when it has
// no trigger keys, or when any key matches the corpus
// case-insensitively.
func Filter(anns []assembly.Annotation, corpus string) []assembly.Annotation {
	corpus = strings.ToLower(corpus)

	var active []assembly.Annotation
	for _, a := range anns {
		if a.Constant || len(a.TriggerKeys) == 0 || matches(a.TriggerKeys, corpus) {
			active = append(active, a)
		}
	}
	return active
}

func matches(keys []string, corpus string) bool {
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(corpus, k) {
			return true
		}
	}
	return false
}
