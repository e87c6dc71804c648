package diag

import (
	"testing"

	"tml/internal/source"
)

func diagAt(code Code, sev Severity, file source.FileID, start uint32) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  "m",
		Primary:  source.Span{File: file, Start: start, End: start + 1},
	}
}

func TestBagZeroMaxGetsDefaultCap(t *testing.T) {
	b := NewBag(0)
	if b.Cap() == 0 {
		t.Fatal("a zero-limit bag would silently drop every diagnostic")
	}
	if !b.Add(diagAt(GenUnknownIdent, SevError, 1, 0)) {
		t.Fatal("Add rejected the first diagnostic")
	}
	if !b.HasErrors() {
		t.Error("HasErrors should see the added error")
	}
}

func TestBagHonorsLimit(t *testing.T) {
	b := NewBag(2)
	if !b.Add(diagAt(GenUnknownIdent, SevError, 1, 0)) {
		t.Fatal("first Add rejected")
	}
	if !b.Add(diagAt(GenUnknownIdent, SevError, 1, 1)) {
		t.Fatal("second Add rejected")
	}
	if b.Add(diagAt(GenUnknownIdent, SevError, 1, 2)) {
		t.Error("Add past the limit should report false")
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
}

func TestBagHasErrorsIgnoresWarnings(t *testing.T) {
	b := NewBag(4)
	b.Add(diagAt(GenUnknownIdent, SevWarning, 1, 0))
	if b.HasErrors() {
		t.Error("a warning alone should not count as an error")
	}
	b.Add(diagAt(GenUnknownIdent, SevError, 1, 1))
	if !b.HasErrors() {
		t.Error("error entry not detected")
	}
}

func TestBagSortIsPositional(t *testing.T) {
	b := NewBag(4)
	b.Add(diagAt(GenUnknownIdent, SevError, 2, 5))
	b.Add(diagAt(GenUnknownIdent, SevError, 1, 9))
	b.Add(diagAt(GenUnknownIdent, SevError, 1, 3))
	b.Sort()
	items := b.Items()
	if items[0].Primary.File != 1 || items[0].Primary.Start != 3 {
		t.Errorf("first after sort = %+v", items[0].Primary)
	}
	if items[2].Primary.File != 2 {
		t.Errorf("last after sort = %+v", items[2].Primary)
	}
}

func TestBagDedupDropsRepeats(t *testing.T) {
	b := NewBag(4)
	b.Add(diagAt(GenUnknownIdent, SevError, 1, 3))
	b.Add(diagAt(GenUnknownIdent, SevError, 1, 3))
	b.Add(diagAt(GenUnknownIdent, SevError, 1, 4))
	b.Dedup()
	if b.Len() != 2 {
		t.Errorf("Len after Dedup = %d, want 2", b.Len())
	}
}

func TestBagReporterCollects(t *testing.T) {
	b := NewBag(4)
	r := BagReporter{Bag: b}
	Error(r, GenUnknownIdent, source.Span{File: 1, Start: 0, End: 1}, "no such name")
	if !b.HasErrors() {
		t.Fatal("reported error did not land in the bag")
	}
	if got := b.Items()[0].Message; got != "no such name" {
		t.Errorf("message = %q", got)
	}
}
