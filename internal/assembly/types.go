package assembly

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the speaker of a turn or block.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// NormalizeRole folds provider aliases onto the two roles history turns
// may carry. "user" stays user; everything else ("model", "assistant",
// "system", unknown values) folds to model, matching the behavior of
// upstream transcript stores that label replies inconsistently.
func NormalizeRole(r Role) Role {
	if r == RoleUser {
		return RoleUser
	}
	return RoleModel
}

// FrameworkEntry is one element of the static framework: either a
// fixed instruction block or, when HistorySlot is set, the single point
// where the conversation is embedded.
type FrameworkEntry struct {
	Name        string
	Content     string
	Role        Role
	Identifier  string
	HistorySlot bool
}

// Position selects the placement strategy for an annotation.
//
// PositionDepth (4) places the annotation at a depth measured backward
// from the reference turn. PositionBeforeAnchor (2) and
// PositionAfterAnchor (3) place it around the anchor-marker turn.
// Zero means unset and is treated as PositionDepth. Position 1 is
// reserved by upstream document formats and never placed here.
type Position int

const (
	PositionReserved     Position = 1
	PositionBeforeAnchor Position = 2
	PositionAfterAnchor  Position = 3
	PositionDepth        Position = 4
)

// effective maps the unset zero value onto PositionDepth.
func (p Position) effective() Position {
	if p == 0 {
		return PositionDepth
	}
	return p
}

// Annotation is a context fragment injected at a computed location
// rather than a fixed framework position (a "D-entry" in character
// card terms).
type Annotation struct {
	Name    string
	Content string

	// Role defaults to user when empty.
	Role Role

	// Position selects depth-relative (4, the default) or
	// anchor-relative (2, 3) placement.
	Position Position

	// Depth is the distance from the reference turn, in turns, counted
	// backward. Meaningful only for depth-positioned annotations.
	// Depth 0 lands immediately after the reference turn.
	Depth int

	// AnchorMarker marks the materialized turn as the anchor for
	// position-2/3 placement. Used for the author's note: the note is
	// itself depth-injected, then anchor-relative entries attach to it
	// in the second pass.
	AnchorMarker bool

	// Constant and TriggerKeys are carried for the trigger filter; the
	// assembly passes never read them.
	Constant    bool
	TriggerKeys []string

	Identifier string
}

// role returns the annotation's role with the user default applied.
func (a Annotation) role() Role {
	if a.Role == "" {
		return RoleUser
	}
	return NormalizeRole(a.Role)
}

// turn materializes the annotation as an injected conversation turn.
func (a Annotation) turn() Turn {
	return Turn{
		Role:         a.role(),
		Parts:        []string{a.Content},
		Injected:     true,
		AnchorMarker: a.AnchorMarker,
	}
}

// Turn is a single conversation turn. Content is an ordered list of
// text fragments, mirroring the part lists used by provider wire
// formats.
type Turn struct {
	Role      Role
	Parts     []string
	Timestamp time.Time

	// Injected marks a turn produced by a previous injection pass.
	// Normalize strips these so annotations are recomputed fresh on
	// every call instead of accumulating.
	Injected bool

	// AnchorMarker designates this turn as the insertion reference for
	// anchor-relative annotations (typically an author's note).
	AnchorMarker bool

	// Greeting marks a character's opening message. Greetings survive
	// normalization like any ordinary turn; the flag exists so callers
	// can recognize them in persisted transcripts.
	Greeting bool
}

// Text returns the turn's fragments joined into one string.
func (t Turn) Text() string {
	return strings.Join(t.Parts, "\n")
}

// Block is one element of an assembled sequence: a static instruction
// block, or the history slot holding the conversation turns. Slot
// discriminates the two shapes; Content is meaningful only for static
// blocks and Turns only for the slot.
type Block struct {
	Name       string
	Role       Role
	Identifier string
	Slot       bool
	Content    string
	Turns      []Turn
}

// Sequence is the engine's output: the ordered blocks plus the index
// of the history slot (-1 when the sequence has none, which only
// happens when there is no conversation at all).
type Sequence struct {
	Blocks    []Block
	SlotIndex int
}

// ValidationError reports an input that breaks a structural assumption
// outright. These are never coerced silently because a malformed
// framework or annotation would corrupt the prompt structure the model
// sees.
type ValidationError struct {
	Field  string // offending field name
	Entry  string // name of the offending entry, when known
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("invalid %s on entry %q: %s", e.Field, e.Entry, e.Detail)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}
