package resource

import (
	"testing"
	"time"
)

func TestCreateValueRequiresTypeOrData(t *testing.T) {
	p, err := NewPoint(FOCFeed, "point1", true)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}
	if err := p.CreateValue("temp", "", "", "", "", nil); err == nil {
		t.Fatal("expected an error when neither vtype nor data is given")
	}
}

func TestCreateValueTracksTypeAndShareChangesSeparately(t *testing.T) {
	p, err := NewPoint(FOCFeed, "point1", true)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}
	if err := p.CreateValue("temp", "float", "en", "temperature", "", nil); err != nil {
		t.Fatalf("CreateValue: %v", err)
	}
	if len(p.Changes()) != 1 {
		t.Fatalf("expected 1 change after declaring a value type, got %v", p.Changes())
	}
	if err := p.CreateValue("temp", "float", "en", "temperature", "", nil); err != nil {
		t.Fatalf("CreateValue: %v", err)
	}
	if len(p.Changes()) != 1 {
		t.Fatalf("re-declaring an identical value should not duplicate the marker, got %v", p.Changes())
	}

	if err := p.CreateValue("temp", "", "", "", "", []byte("21.5")); err != nil {
		t.Fatalf("CreateValue (data only): %v", err)
	}
	if len(p.Changes()) != 2 {
		t.Fatalf("expected a separate share-pending change for data, got %v", p.Changes())
	}
	v := p.Values()["temp"]
	if v.VType != "float" || string(v.ShareData) != "21.5" {
		t.Fatalf("unexpected value after data-only update: %+v", v)
	}
}

func TestShareRequiresDataOrTime(t *testing.T) {
	p, err := NewPoint(FOCFeed, "point1", true)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}
	if err := p.Share(nil, time.Time{}); err == nil {
		t.Fatal("expected an error when neither data nor a timestamp is given")
	}
	if err := p.Share([]byte("hi"), time.Time{}); err != nil {
		t.Fatalf("Share (data only): %v", err)
	}
	if string(p.ShareData()) != "hi" {
		t.Fatalf("unexpected share data: %q", p.ShareData())
	}
	if p.ShareTime() != "" {
		t.Fatalf("expected no share time set, got %q", p.ShareTime())
	}
	if len(p.Changes()) != 1 {
		t.Fatalf("expected 1 change after sharing data, got %v", p.Changes())
	}

	now := time.Now().UTC()
	if err := p.Share(nil, now); err != nil {
		t.Fatalf("Share (time only): %v", err)
	}
	if p.ShareTime() == "" {
		t.Fatal("expected a share time to be recorded")
	}
	if len(p.Changes()) != 2 {
		t.Fatalf("expected 2 changes after also sharing a timestamp, got %v", p.Changes())
	}
}

func TestSetRecentConfigOnlyMarksChangedOnDifference(t *testing.T) {
	p, err := NewPoint(FOCFeed, "point1", true)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}
	p.SetRecentConfig(0)
	if len(p.Changes()) != 0 {
		t.Fatalf("setting recent config to its existing value should not mark a change, got %v", p.Changes())
	}
	p.SetRecentConfig(10)
	if p.RecentConfig() != 10 {
		t.Fatalf("expected RecentConfig to be 10, got %d", p.RecentConfig())
	}
	if len(p.Changes()) != 1 {
		t.Fatalf("expected 1 change after changing recent config, got %v", p.Changes())
	}
	p.SetRecentConfig(10)
	if len(p.Changes()) != 1 {
		t.Fatalf("re-setting the same recent config should not duplicate the marker, got %v", p.Changes())
	}
}

func TestNewPointFromSnapshotCarriesValuesWithoutChanges(t *testing.T) {
	values := map[string]Value{"temp": {VType: "float", Lang: "en"}}
	p, err := NewPointFromSnapshot(FOCControl, "point1", map[string]string{"en": "Temperature"}, nil, []string{"sensor"}, values, 5)
	if err != nil {
		t.Fatalf("NewPointFromSnapshot: %v", err)
	}
	if p.IsNew() {
		t.Fatal("expected a snapshot-hydrated point to not be new")
	}
	if len(p.Changes()) != 0 {
		t.Fatalf("expected no changes on a snapshot-hydrated point, got %v", p.Changes())
	}
	if p.FOC() != FOCControl {
		t.Fatalf("expected FOCControl, got %v", p.FOC())
	}
	if p.RecentConfig() != 5 {
		t.Fatalf("expected RecentConfig 5, got %d", p.RecentConfig())
	}
	if got := p.Values()["temp"]; got.VType != "float" {
		t.Fatalf("expected hydrated value to carry vtype float, got %+v", got)
	}
}
