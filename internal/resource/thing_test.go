package resource

import "testing"

func TestSetPublicOnlyMarksChangedOnDifference(t *testing.T) {
	th, err := NewThing("thing1", true, nil)
	if err != nil {
		t.Fatalf("NewThing: %v", err)
	}
	th.SetPublic(false)
	if len(th.Changes()) != 0 {
		t.Fatalf("setting public to its existing value should not mark a change, got %v", th.Changes())
	}
	th.SetPublic(true)
	if len(th.Changes()) != 1 {
		t.Fatalf("expected 1 change after toggling public, got %v", th.Changes())
	}
	th.SetPublic(true)
	if len(th.Changes()) != 1 {
		t.Fatalf("re-setting the same public value should not duplicate the marker, got %v", th.Changes())
	}
}

func TestSetLocationTracksChangeAndValue(t *testing.T) {
	th, err := NewThing("thing1", true, nil)
	if err != nil {
		t.Fatalf("NewThing: %v", err)
	}
	if _, _, ok := th.Location(); ok {
		t.Fatal("expected no location set on a fresh thing")
	}
	if err := th.SetLocation(51.5, -0.1); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	lat, lon, ok := th.Location()
	if !ok || lat != 51.5 || lon != -0.1 {
		t.Fatalf("unexpected location: %v %v %v", lat, lon, ok)
	}
	if len(th.Changes()) != 1 {
		t.Fatalf("expected 1 change, got %v", th.Changes())
	}
	if err := th.SetLocation(51.5, -0.1); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	if len(th.Changes()) != 1 {
		t.Fatalf("re-setting the same location should not duplicate the marker, got %v", th.Changes())
	}
	if err := th.SetLocation(999, 0); err == nil {
		t.Fatal("expected an error for an out-of-range latitude")
	}
}

func TestThingClearChangesRecursesIntoPoints(t *testing.T) {
	th, err := NewThing("thing1", true, nil)
	if err != nil {
		t.Fatalf("NewThing: %v", err)
	}
	pt, err := th.CreateFeed("point1")
	if err != nil {
		t.Fatalf("CreateFeed: %v", err)
	}
	pt.SetRecentConfig(5)
	if pt.RecentConfig() != 5 {
		t.Fatalf("SetRecentConfig: expected 5, got %d", pt.RecentConfig())
	}
	th.SetPublic(true)

	th.ClearChanges()

	if th.IsNew() {
		t.Fatal("expected thing IsNew to be false after ClearChanges")
	}
	if len(th.Changes()) != 0 {
		t.Fatalf("expected no thing changes after ClearChanges, got %v", th.Changes())
	}
	if pt.IsNew() {
		t.Fatal("expected point IsNew to be false after thing ClearChanges")
	}
	if len(pt.Changes()) != 0 {
		t.Fatalf("expected no point changes after thing ClearChanges, got %v", pt.Changes())
	}
}

func TestAdoptPointFromSnapshotDoesNotMarkChanges(t *testing.T) {
	th, err := NewThingFromSnapshot("thing1", true, map[string]string{"en": "hello"}, nil, []string{"a"}, 1, 2, true, nil)
	if err != nil {
		t.Fatalf("NewThingFromSnapshot: %v", err)
	}
	if th.IsNew() {
		t.Fatal("expected a snapshot-hydrated thing to not be new")
	}
	if len(th.Changes()) != 0 {
		t.Fatalf("expected no changes on a snapshot-hydrated thing, got %v", th.Changes())
	}

	pt, err := NewPointFromSnapshot(FOCFeed, "point1", nil, nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("NewPointFromSnapshot: %v", err)
	}
	th.AdoptPoint(pt)

	points := th.Points()
	if len(points) != 1 || points["point1"] != pt {
		t.Fatalf("expected AdoptPoint to attach point1, got %v", points)
	}
	if len(pt.Changes()) != 0 {
		t.Fatalf("expected no changes on an adopted snapshot point, got %v", pt.Changes())
	}
}

func TestCreatePointReturnsExistingInstance(t *testing.T) {
	th, err := NewThing("thing1", true, nil)
	if err != nil {
		t.Fatalf("NewThing: %v", err)
	}
	p1, err := th.CreateFeed("point1")
	if err != nil {
		t.Fatalf("CreateFeed: %v", err)
	}
	p2, err := th.CreateFeed("point1")
	if err != nil {
		t.Fatalf("CreateFeed: %v", err)
	}
	if p1 != p2 {
		t.Fatal("expected CreateFeed to return the same point instance for an existing pid")
	}
}

func TestFinaliseInvokesHook(t *testing.T) {
	called := false
	th, err := NewThing("thing1", true, func(t *Thing) { called = true })
	if err != nil {
		t.Fatalf("NewThing: %v", err)
	}
	th.Finalise()
	if !called {
		t.Fatal("expected onFinalise hook to run")
	}
}
