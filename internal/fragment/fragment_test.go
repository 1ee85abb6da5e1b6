package fragment

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lits(parts ...string) []Fragment {
	out := make([]Fragment, len(parts))
	for i, p := range parts {
		out[i] = Lit(p)
	}
	return out
}

func TestUnzip(t *testing.T) {
	a, b, c := &Slot{Text: "A"}, &Slot{Text: "B"}, &Slot{Text: "C"}
	tests := []struct {
		name  string
		in    []Fragment
		parts []string
		slots []*Slot
	}{
		{"empty", nil, []string{""}, nil},
		{"no slots", lits("foo"), []string{"foo"}, nil},
		{"adjacent slots", []Fragment{Lit("foo_"), SlotOf(a), SlotOf(b), Lit("_baz")}, []string{"foo_", "", "_baz"}, []*Slot{a, b}},
		{"leading slot run", []Fragment{SlotOf(a), SlotOf(b), SlotOf(c), Lit("_foo")}, []string{"", "", "", "_foo"}, []*Slot{a, b, c}},
		{"trailing slot", []Fragment{Lit("x"), SlotOf(a)}, []string{"x", ""}, []*Slot{a}},
		{"literal run", []Fragment{Lit("a"), Lit("b"), SlotOf(a), Lit("c"), Lit("d")}, []string{"ab", "cd"}, []*Slot{a}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unzip(tt.in)
			if err := got.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if diff := cmp.Diff(tt.parts, got.Parts); diff != "" {
				t.Errorf("parts mismatch (-want +got):\n%s", diff)
			}
			if len(got.Slots) != len(tt.slots) {
				t.Fatalf("got %d slots, want %d", len(got.Slots), len(tt.slots))
			}
			for i := range tt.slots {
				if got.Slots[i] != tt.slots[i] {
					t.Errorf("slot %d = %s, want %s", i, got.Slots[i].Text, tt.slots[i].Text)
				}
			}
		})
	}
}

func TestUnzipIsIdempotent(t *testing.T) {
	a, b := &Slot{Text: "A"}, &Slot{Text: "B"}
	once := Unzip([]Fragment{SlotOf(a), Lit("x"), Lit("y"), SlotOf(b)})
	twice := Unzip(once.Fragments())
	if diff := cmp.Diff(once.Parts, twice.Parts); diff != "" {
		t.Fatalf("parts differ (-once +twice):\n%s", diff)
	}
	if len(twice.Slots) != 2 || twice.Slots[0] != a || twice.Slots[1] != b {
		t.Fatalf("slots changed: %v", twice.Slots)
	}
}

// TestUnzipAllSequences walks every literal/slot sequence up to length 8 and
// compares Unzip with a running model: literals extend the current part, a
// slot closes it and opens an empty one.
func TestUnzipAllSequences(t *testing.T) {
	const maxLen = 8
	for n := 0; n <= maxLen; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			frags := make([]Fragment, n)
			wantParts := []string{""}
			var wantSlots []*Slot
			for i := range frags {
				text := fmt.Sprintf("<%d>", i)
				if mask&(1<<i) != 0 {
					s := &Slot{Text: text}
					frags[i] = SlotOf(s)
					wantSlots = append(wantSlots, s)
					wantParts = append(wantParts, "")
				} else {
					frags[i] = Lit(text)
					wantParts[len(wantParts)-1] += text
				}
			}

			got := Unzip(frags)
			if err := got.Validate(); err != nil {
				t.Fatalf("n=%d mask=%b: Validate: %v", n, mask, err)
			}
			if len(got.Parts) != len(got.Slots)+1 {
				t.Fatalf("n=%d mask=%b: %d parts for %d slots", n, mask, len(got.Parts), len(got.Slots))
			}
			if diff := cmp.Diff(wantParts, got.Parts); diff != "" {
				t.Fatalf("n=%d mask=%b: parts mismatch (-want +got):\n%s", n, mask, diff)
			}
			if len(got.Slots) != len(wantSlots) {
				t.Fatalf("n=%d mask=%b: got %d slots, want %d", n, mask, len(got.Slots), len(wantSlots))
			}
			for i := range wantSlots {
				if got.Slots[i] != wantSlots[i] {
					t.Fatalf("n=%d mask=%b: slot %d = %s, want %s", n, mask, i, got.Slots[i].Text, wantSlots[i].Text)
				}
			}

			again := Unzip(got.Fragments())
			if diff := cmp.Diff(got.Parts, again.Parts); diff != "" {
				t.Fatalf("n=%d mask=%b: re-unzip changed parts (-first +second):\n%s", n, mask, diff)
			}
		}
	}
}
