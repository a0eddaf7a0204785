package assembly

import (
	"reflect"
	"testing"
)

func TestInjectDepth(t *testing.T) {
	base := []Turn{
		userTurn("h0"),
		modelTurn("h1"),
		userTurn("h2"),
	}

	tests := []struct {
		name string
		anns []Annotation
		ref  string
		want []string
	}{
		{
			name: "no annotations",
			want: []string{"user:h0", "model:h1", "user:h2"},
		},
		{
			name: "depth 1 before predecessor of reference",
			anns: []Annotation{{Content: "note", Depth: 1}},
			ref:  "h2",
			want: []string{"user:h0", "inj:note", "model:h1", "user:h2"},
		},
		{
			name: "depth 0 after reference",
			anns: []Annotation{{Content: "note", Depth: 0}},
			ref:  "h2",
			want: []string{"user:h0", "model:h1", "user:h2", "inj:note"},
		},
		{
			name: "depth 2 before oldest matching turn",
			anns: []Annotation{{Content: "note", Depth: 2}},
			ref:  "h2",
			want: []string{"inj:note", "user:h0", "model:h1", "user:h2"},
		},
		{
			name: "same depth keeps original order",
			anns: []Annotation{
				{Content: "first", Depth: 1},
				{Content: "second", Depth: 1},
			},
			ref:  "h2",
			want: []string{"user:h0", "inj:first", "inj:second", "model:h1", "user:h2"},
		},
		{
			name: "unmatched depth dropped",
			anns: []Annotation{{Content: "lost", Depth: 7}},
			ref:  "h2",
			want: []string{"user:h0", "model:h1", "user:h2"},
		},
		{
			name: "no reference content falls back to last turn",
			anns: []Annotation{{Content: "note", Depth: 1}},
			want: []string{"user:h0", "inj:note", "model:h1", "user:h2"},
		},
		{
			name: "anchor entries ignored by depth pass",
			anns: []Annotation{{Content: "x", Position: PositionBeforeAnchor}},
			ref:  "h2",
			want: []string{"user:h0", "model:h1", "user:h2"},
		},
		{
			name: "reserved position ignored",
			anns: []Annotation{{Content: "x", Position: PositionReserved, Depth: 1}},
			ref:  "h2",
			want: []string{"user:h0", "model:h1", "user:h2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := turnLabels(injectDepth(base, tt.anns, tt.ref))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("injectDepth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInjectDepthEmptyHistory(t *testing.T) {
	got := injectDepth(nil, []Annotation{{Content: "note", Depth: 1}}, "")
	if len(got) != 0 {
		t.Errorf("injectDepth(empty) = %v, want empty", turnLabels(got))
	}
}

func TestInjectDepthReferenceMidHistory(t *testing.T) {
	// The reference match searches from the end for a user turn with
	// the reference text; turns after it sit at negative distances and
	// stay untouched unless a matching negative depth exists.
	turns := []Turn{
		userTurn("question"),
		modelTurn("answer"),
	}
	got := turnLabels(injectDepth(turns, []Annotation{{Content: "note", Depth: 0}}, "question"))
	want := []string{"user:question", "inj:note", "model:answer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("injectDepth() = %v, want %v", got, want)
	}
}

func TestReferenceIndex(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		ref   string
		want  int
	}{
		{name: "empty history", want: -1},
		{
			name:  "matches newest user turn",
			turns: []Turn{userTurn("a"), modelTurn("b"), userTurn("a")},
			ref:   "a",
			want:  2,
		},
		{
			name:  "model turn with same text not matched",
			turns: []Turn{userTurn("a"), modelTurn("a")},
			ref:   "a",
			want:  0,
		},
		{
			name:  "no match falls back to last index",
			turns: []Turn{userTurn("a"), modelTurn("b")},
			ref:   "missing",
			want:  1,
		},
		{
			name:  "empty reference uses last index",
			turns: []Turn{userTurn("a"), modelTurn("b")},
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := referenceIndex(tt.turns, tt.ref); got != tt.want {
				t.Errorf("referenceIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}
