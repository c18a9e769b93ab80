package catalog

import "testing"

func TestParseSnapshotAttachesKeysAndSkipsInvalid(t *testing.T) {
	snapshot := []byte(`{
		"p2": {"name": "Ann", "price_per_hour": 5, "rating": 2},
		"p1": {"name": "Bob", "price_per_hour": 15, "rating": 4},
		"p3": {"name": "", "price_per_hour": 20},
		"p4": {"name": "NoPrice"},
		"p5": {"name": "ZeroPrice", "price_per_hour": 0},
		"p6": "not an object"
	}`)

	profiles, err := ParseSnapshot(snapshot)
	if err != nil {
		t.Fatalf("ParseSnapshot returned error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d: %+v", len(profiles), profiles)
	}
	if profiles[0].ID != "p1" || profiles[0].Name != "Bob" {
		t.Fatalf("unexpected first profile: %+v", profiles[0])
	}
	if profiles[1].ID != "p2" || profiles[1].PricePerHour != 5 {
		t.Fatalf("unexpected second profile: %+v", profiles[1])
	}
}

func TestParseSnapshotRejectsNonObjectRoot(t *testing.T) {
	if _, err := ParseSnapshot([]byte(`[1, 2, 3]`)); err == nil {
		t.Fatal("expected error for non-object snapshot root")
	}
}

func TestParseSnapshotOrderIsDeterministic(t *testing.T) {
	snapshot := []byte(`{
		"b": {"name": "B", "price_per_hour": 1},
		"a": {"name": "A", "price_per_hour": 1},
		"c": {"name": "C", "price_per_hour": 1}
	}`)
	profiles, err := ParseSnapshot(snapshot)
	if err != nil {
		t.Fatalf("ParseSnapshot returned error: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, profile := range profiles {
		if profile.ID != want[i] {
			t.Fatalf("profiles out of key order: %+v", profiles)
		}
	}
}
