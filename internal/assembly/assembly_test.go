package assembly

import (
	"errors"
	"reflect"
	"testing"
)

func userTurn(text string) Turn  { return Turn{Role: RoleUser, Parts: []string{text}} }
func modelTurn(text string) Turn { return Turn{Role: RoleModel, Parts: []string{text}} }

// turnLabels renders a turn slice compactly for failure messages and
// order assertions: "user:hi model:hello inj:reminder".
func turnLabels(turns []Turn) []string {
	var out []string
	for _, t := range turns {
		label := string(t.Role)
		if t.Injected {
			label = "inj"
		}
		if t.AnchorMarker {
			label = "anchor"
		}
		out = append(out, label+":"+t.Text())
	}
	return out
}

func TestAssembleExampleScenario(t *testing.T) {
	// Framework of system instructions plus a declared slot, two prior
	// turns, a pending message, and one depth-1 annotation. The
	// annotation must land immediately before the turn at distance 1
	// from the reference (the pending message).
	in := Input{
		Framework: []FrameworkEntry{
			{Name: "Main", Content: "system instructions", Role: RoleSystem},
			{Name: "Chat History", Role: RoleSystem, HistorySlot: true},
		},
		History: []Turn{
			userTurn("hi"),
			modelTurn("hello"),
		},
		UserMessage: "how are you",
		Annotations: []Annotation{
			{Name: "note", Content: "reminder", Position: PositionDepth, Depth: 1},
		},
	}

	seq, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if seq.SlotIndex != 1 {
		t.Fatalf("SlotIndex = %d, want 1", seq.SlotIndex)
	}

	want := []string{
		"inj:reminder",
		"user:hi",
		"model:hello",
		"user:how are you",
	}
	got := turnLabels(seq.Blocks[seq.SlotIndex].Turns)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("slot turns = %v, want %v", got, want)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	in := Input{
		Framework: []FrameworkEntry{
			{Name: "Main", Content: "instructions", Role: RoleSystem},
			{Name: "Chat History", HistorySlot: true},
		},
		History: []Turn{
			userTurn("hi"),
			modelTurn("hello"),
			userTurn("how are you"),
		},
		Annotations: []Annotation{
			{Name: "note", Content: "reminder", Depth: 1},
		},
	}

	first, err := Assemble(in)
	if err != nil {
		t.Fatalf("first Assemble() error: %v", err)
	}

	// Feed the assembled slot back in as the raw history, as a caller
	// re-assembling a stored transcript would. The injected turn must
	// be stripped and re-placed, not doubled.
	in.History = first.Blocks[first.SlotIndex].Turns
	second, err := Assemble(in)
	if err != nil {
		t.Fatalf("second Assemble() error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-assembly diverged:\nfirst:  %v\nsecond: %v",
			turnLabels(first.Blocks[first.SlotIndex].Turns),
			turnLabels(second.Blocks[second.SlotIndex].Turns))
	}
}

func TestAssembleSlotUniqueness(t *testing.T) {
	tests := []struct {
		name      string
		framework []FrameworkEntry
		history   []Turn
		message   string
		wantSlots int
		wantIndex int
	}{
		{
			name: "declared slot",
			framework: []FrameworkEntry{
				{Name: "Main", Content: "x"},
				{Name: "Chat History", HistorySlot: true},
			},
			history:   []Turn{userTurn("hi")},
			wantSlots: 1,
			wantIndex: 1,
		},
		{
			name: "duplicate slots collapse to first",
			framework: []FrameworkEntry{
				{Name: "Chat History", HistorySlot: true},
				{Name: "Main", Content: "x"},
				{Name: "Extra Slot", HistorySlot: true},
			},
			history:   []Turn{userTurn("hi")},
			wantSlots: 1,
			wantIndex: 0,
		},
		{
			name: "no slot declared, synthesized at end",
			framework: []FrameworkEntry{
				{Name: "Main", Content: "x"},
			},
			message:   "hello",
			wantSlots: 1,
			wantIndex: 1,
		},
		{
			name:      "empty framework with history",
			history:   []Turn{userTurn("hi")},
			wantSlots: 1,
			wantIndex: 0,
		},
		{
			name: "no conversation, no slot",
			framework: []FrameworkEntry{
				{Name: "Main", Content: "x"},
			},
			wantSlots: 0,
			wantIndex: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := Assemble(Input{
				Framework:   tt.framework,
				History:     tt.history,
				UserMessage: tt.message,
			})
			if err != nil {
				t.Fatalf("Assemble() error: %v", err)
			}

			slots := 0
			for _, b := range seq.Blocks {
				if b.Slot {
					slots++
				}
			}
			if slots != tt.wantSlots {
				t.Errorf("slot count = %d, want %d", slots, tt.wantSlots)
			}
			if seq.SlotIndex != tt.wantIndex {
				t.Errorf("SlotIndex = %d, want %d", seq.SlotIndex, tt.wantIndex)
			}
		})
	}
}

func TestAssembleNoFabrication(t *testing.T) {
	// A depth with no matching history index and anchor entries with no
	// anchor turn must both vanish from the output.
	in := Input{
		History:     []Turn{userTurn("hi")},
		UserMessage: "hello",
		Annotations: []Annotation{
			{Name: "too deep", Content: "lost", Depth: 9},
			{Name: "orphan before", Content: "lost", Position: PositionBeforeAnchor},
			{Name: "orphan after", Content: "lost", Position: PositionAfterAnchor},
			{Name: "kept", Content: "kept", Depth: 1},
		},
	}

	seq, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}

	injected := 0
	for _, turn := range seq.Blocks[seq.SlotIndex].Turns {
		if !turn.Injected {
			continue
		}
		injected++
		if turn.Text() != "kept" {
			t.Errorf("unexpected injected turn %q", turn.Text())
		}
	}
	if injected != 1 {
		t.Errorf("injected turn count = %d, want 1", injected)
	}
}

func TestAssembleValidation(t *testing.T) {
	tests := []struct {
		name      string
		input     Input
		wantField string
	}{
		{
			name: "position out of range",
			input: Input{
				Annotations: []Annotation{{Name: "bad", Content: "x", Position: 7}},
			},
			wantField: "position",
		},
		{
			name: "negative position",
			input: Input{
				Annotations: []Annotation{{Name: "bad", Content: "x", Position: -1}},
			},
			wantField: "position",
		},
		{
			name: "empty framework entry without slot flag",
			input: Input{
				Framework: []FrameworkEntry{{Name: "Hollow"}},
			},
			wantField: "content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Assemble() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestAssembleEmptyInputs(t *testing.T) {
	seq, err := Assemble(Input{})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if len(seq.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(seq.Blocks))
	}
	if seq.SlotIndex != -1 {
		t.Errorf("SlotIndex = %d, want -1", seq.SlotIndex)
	}
}
