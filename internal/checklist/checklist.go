// Package checklist holds the project milestone schema and the completion
// rules derived from it: the canonical field order, the percentage
// calculation, and the DDSS approval gate.
package checklist

// Values maps checklist field names to their tri-state value: nil means the
// milestone is not yet applicable, false and true are answered states.
type Values map[string]*bool

// order is the canonical field order. It drives both iteration for the
// completion count and the "what's next" pointer shown on dashboards.
var order = []string{
	"a1", "a2", "a3",
	"b1", "b2", "b3",
	"c1", "c2", "c3",
	"d1", "d2", "d3", "d4", "d5", "d6", "d7",
	"e1", "e2", "e3",
	"f1", "f2",
}

// extra are stored checklist columns that are shown in list views but do
// not participate in the completion percentage or the next-field pointer.
var extra = []string{"a4", "a5"}

var known = func() map[string]bool {
	m := make(map[string]bool, len(order)+len(extra))
	for _, f := range order {
		m[f] = true
	}
	for _, f := range extra {
		m[f] = true
	}
	return m
}()

// Fields returns the canonical field order.
func Fields() []string {
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Known reports whether name is a checklist column that may be updated,
// including the a4/a5 columns outside the canonical order. Field names
// arrive from clients and end up in UPDATE statements, so everything else
// is rejected.
func Known(name string) bool {
	return known[name]
}

// Group returns the category letter of a canonical field ("a1" -> "a").
func Group(name string) string {
	if name == "" {
		return ""
	}
	return name[:1]
}

// Percent computes the completion percentage for the given values.
// The denominator is the 21 canonical fields, plus one for each of the
// stc/drv extensions when present. Rounding is half-up to match the
// ROUND(x, 0) the dashboards historically displayed.
func Percent(v Values, stc, drv bool) int {
	num := 0
	for _, f := range order {
		if b := v[f]; b != nil && *b {
			num++
		}
	}
	den := len(order)
	if stc {
		den++
	}
	if drv {
		den++
	}
	return (200*num + den) / (2 * den)
}

// NextField returns the first canonical field that is still nil, the "what
// to do next" pointer. ok is false when every field has been answered.
func NextField(v Values) (name string, ok bool) {
	for _, f := range order {
		if v[f] == nil {
			return f, true
		}
	}
	return "", false
}

// GateState describes where a project stands with respect to DDSS approval.
type GateState int

const (
	// Locked: d7 unset and at least one of d1-d6 not yet true.
	Locked GateState = iota
	// Ready: d7 unset with d1-d6 all true; approval may be attempted.
	Ready
	// Approved: d7 is true. There is no transition out of this state.
	Approved
)

func (s GateState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Ready:
		return "ready"
	case Approved:
		return "approved"
	}
	return "unknown"
}

// Gate evaluates the DDSS approval state for the given values.
func Gate(v Values) GateState {
	if b := v["d7"]; b != nil && *b {
		return Approved
	}
	for _, f := range []string{"d1", "d2", "d3", "d4", "d5", "d6"} {
		if b := v[f]; b == nil || !*b {
			return Locked
		}
	}
	return Ready
}
