package heal

import (
	"testing"
)

func TestStoreSaveAndGet(t *testing.T) {
	s := NewStore(t.TempDir())
	r := &Report{RunID: "abc", RepoURL: "https://github.com/acme/widgets", FinalStatus: StatusPassed}

	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get("abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.RepoURL != r.RepoURL || got.FinalStatus != StatusPassed {
		t.Errorf("got %+v", got)
	}
}

func TestStoreLatest(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"one", "two"} {
		if err := s.Save(&Report{RunID: id, FinalStatus: StatusFailed}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.RunID != "two" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestStoreMissing(t *testing.T) {
	s := NewStore(t.TempDir())

	if r, err := s.Get("nope"); err != nil || r != nil {
		t.Errorf("Get missing = %+v, %v", r, err)
	}
	if r, err := s.Latest(); err != nil || r != nil {
		t.Errorf("Latest on empty store = %+v, %v", r, err)
	}
}

func TestStoreRejectsEmptyRunID(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Save(&Report{}); err == nil {
		t.Fatal("expected error for empty run ID")
	}
}
