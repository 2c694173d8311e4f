package resource

import "testing"

func TestSetLabelOnlyMarksChangedOnDifference(t *testing.T) {
	b, err := NewBase("lid1", true)
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	if err := b.SetLabel("en", "hello"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if len(b.Changes()) != 1 {
		t.Fatalf("expected 1 change, got %v", b.Changes())
	}
	if err := b.SetLabel("en", "hello"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if len(b.Changes()) != 1 {
		t.Fatalf("setting same label again should not add a change, got %v", b.Changes())
	}
	if err := b.SetLabel("en", "goodbye"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if len(b.Changes()) != 1 {
		t.Fatalf("changing an already-changed field should not duplicate the marker, got %v", b.Changes())
	}
}

func TestCreateTagIsAdditiveOnly(t *testing.T) {
	b, err := NewBase("lid1", true)
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	if err := b.CreateTag([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := b.CreateTag([]string{"alpha"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	tags := b.Tags()
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", tags)
	}
}

func TestClearChangesResetsNewAndChanges(t *testing.T) {
	b, err := NewBase("lid1", true)
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	_ = b.SetLabel("en", "x")
	b.ClearChanges()
	if b.IsNew() {
		t.Fatal("expected IsNew to be false after ClearChanges")
	}
	if len(b.Changes()) != 0 {
		t.Fatalf("expected no changes after ClearChanges, got %v", b.Changes())
	}
}
