package capability

import "testing"

func TestDefaultsAreEnabled(t *testing.T) {
	defaults := Defaults()
	if len(defaults) == 0 {
		t.Fatal("expected non-empty default capability set")
	}
	seen := map[string]bool{}
	for _, d := range defaults {
		if d.ID == "" || d.Name == "" || d.Category == "" {
			t.Errorf("descriptor %+v missing identity fields", d)
		}
		if !d.Enabled {
			t.Errorf("default capability %s should be enabled", d.ID)
		}
		if seen[d.ID] {
			t.Errorf("duplicate capability id %s", d.ID)
		}
		seen[d.ID] = true
		if len(d.RequiredIntegrations) == 0 {
			t.Errorf("capability %s has no required integrations", d.ID)
		}
	}
}

func TestDefaultsReturnsFreshCopy(t *testing.T) {
	a := Defaults()
	a[0].Enabled = false
	a[0].ID = "mutated"

	b := Defaults()
	if b[0].ID == "mutated" || !b[0].Enabled {
		t.Error("Defaults() must not share state across calls")
	}
}

func TestFind(t *testing.T) {
	list := Defaults()

	d, ok := Find(list, "schedule_meeting")
	if !ok {
		t.Fatal("expected to find schedule_meeting")
	}
	if d.Category != CategoryCalendar {
		t.Errorf("expected calendar category, got %s", d.Category)
	}

	if _, ok := Find(list, "nonexistent"); ok {
		t.Error("expected not to find nonexistent capability")
	}
}
