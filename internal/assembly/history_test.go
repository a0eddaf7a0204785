package assembly

import (
	"strconv"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		history  []Turn
		window   int
		message  string
		wantLen  int
		wantRef  string
		wantLast string
	}{
		{
			name:    "empty history no message",
			wantLen: 0,
		},
		{
			name:     "message appended as user turn",
			message:  "hello",
			wantLen:  1,
			wantRef:  "hello",
			wantLast: "hello",
		},
		{
			name: "injected turns stripped",
			history: []Turn{
				userTurn("hi"),
				{Role: RoleUser, Parts: []string{"note"}, Injected: true},
				modelTurn("hello"),
			},
			wantLen:  2,
			wantLast: "hello",
		},
		{
			name: "window trims oldest",
			history: []Turn{
				userTurn("a"), modelTurn("b"), userTurn("c"), modelTurn("d"),
			},
			window:   2,
			wantLen:  2,
			wantLast: "d",
		},
		{
			name: "window applies before message append",
			history: []Turn{
				userTurn("a"), modelTurn("b"), userTurn("c"),
			},
			window:   2,
			message:  "new",
			wantLen:  3,
			wantRef:  "new",
			wantLast: "new",
		},
		{
			name:     "zero window falls back to default",
			history:  manyTurns(20),
			window:   0,
			wantLen:  DefaultWindow,
			wantLast: "t19",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ref := Normalize(tt.history, tt.window, tt.message)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d (%v)", len(got), tt.wantLen, turnLabels(got))
			}
			if ref != tt.wantRef {
				t.Errorf("ref = %q, want %q", ref, tt.wantRef)
			}
			if tt.wantLast != "" && got[len(got)-1].Text() != tt.wantLast {
				t.Errorf("last = %q, want %q", got[len(got)-1].Text(), tt.wantLast)
			}
		})
	}
}

func manyTurns(n int) []Turn {
	turns := make([]Turn, n)
	for i := range turns {
		role := RoleUser
		if i%2 == 1 {
			role = RoleModel
		}
		turns[i] = Turn{Role: role, Parts: []string{"t" + strconv.Itoa(i)}}
	}
	return turns
}

func TestNormalizeRoleFolding(t *testing.T) {
	history := []Turn{
		{Role: "assistant", Parts: []string{"a"}},
		{Role: RoleSystem, Parts: []string{"b"}},
		{Role: "bot", Parts: []string{"c"}},
		{Role: RoleUser, Parts: []string{"d"}},
	}

	got, _ := Normalize(history, 0, "")
	want := []Role{RoleModel, RoleModel, RoleModel, RoleUser}
	for i, turn := range got {
		if turn.Role != want[i] {
			t.Errorf("turn %d role = %q, want %q", i, turn.Role, want[i])
		}
	}
}

func TestNormalizeWindowInvariant(t *testing.T) {
	// For any history length L and window W, output length is
	// min(L, W), plus 1 when a new message is supplied.
	for _, l := range []int{0, 1, 5, 15, 40} {
		for _, w := range []int{1, 3, 15, 50} {
			for _, msg := range []string{"", "new"} {
				got, _ := Normalize(manyTurns(l), w, msg)
				want := min(l, w)
				if msg != "" {
					want++
				}
				if len(got) != want {
					t.Errorf("L=%d W=%d msg=%q: len = %d, want %d", l, w, msg, len(got), want)
				}
			}
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	history := []Turn{
		{Role: "assistant", Parts: []string{"a"}},
		{Role: RoleUser, Parts: []string{"b"}, Injected: true},
	}

	Normalize(history, 0, "x")

	if history[0].Role != "assistant" {
		t.Errorf("input turn role mutated to %q", history[0].Role)
	}
	if !history[1].Injected {
		t.Error("input injected flag mutated")
	}
}
