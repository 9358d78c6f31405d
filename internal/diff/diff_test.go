package diff

import (
	"strings"
	"testing"
)

func TestComputeCreate(t *testing.T) {
	d := Compute("/hello.js", "", "a\nb\n")
	if !d.IsNew || d.IsDelete {
		t.Fatalf("IsNew=%v IsDelete=%v", d.IsNew, d.IsDelete)
	}
	added, removed := d.Stats()
	if added != 2 || removed != 0 {
		t.Fatalf("stats = +%d -%d, want +2 -0", added, removed)
	}
	if got := d.Unified(); !strings.Contains(got, "--- /dev/null") || !strings.Contains(got, "+a\n+b\n") {
		t.Fatalf("unexpected unified output:\n%s", got)
	}
}

func TestComputeIdentical(t *testing.T) {
	d := Compute("/x.js", "same\n", "same\n")
	if !d.Empty() {
		t.Fatalf("expected no hunks, got %d", len(d.Hunks))
	}
}

func TestComputeEdit(t *testing.T) {
	before := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	after := "1\n2\n3\n4\nfive\n6\n7\n8\n9\n10\n"
	d := Compute("/n.js", before, after)

	if len(d.Hunks) != 1 {
		t.Fatalf("hunks = %d, want 1", len(d.Hunks))
	}
	h := d.Hunks[0]
	if h.OldStart != 2 || h.OldCount != 7 || h.NewStart != 2 || h.NewCount != 7 {
		t.Fatalf("hunk header = -%d,%d +%d,%d", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	}
	added, removed := d.Stats()
	if added != 1 || removed != 1 {
		t.Fatalf("stats = +%d -%d", added, removed)
	}
}

func TestComputeSeparateHunks(t *testing.T) {
	var before, after strings.Builder
	for i := range 30 {
		line := string(rune('a'+i%26)) + "\n"
		before.WriteString(line)
		switch i {
		case 2, 25:
			after.WriteString("changed\n")
		default:
			after.WriteString(line)
		}
	}
	d := Compute("/many.js", before.String(), after.String())
	if len(d.Hunks) != 2 {
		t.Fatalf("hunks = %d, want 2", len(d.Hunks))
	}
}

func TestComputeDelete(t *testing.T) {
	d := Compute("/gone.js", "x\n", "")
	if !d.IsDelete {
		t.Fatal("expected IsDelete")
	}
	if got := d.Unified(); !strings.Contains(got, "+++ /dev/null") || !strings.Contains(got, "-x\n") {
		t.Fatalf("unexpected unified output:\n%s", got)
	}
}
