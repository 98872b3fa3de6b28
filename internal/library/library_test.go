package library

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/models"
)

type fakeLister struct {
	mu      sync.Mutex
	listing models.Listing
	err     error
	calls   atomic.Int32
}

func (f *fakeLister) ListNotes(context.Context) (models.Listing, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listing, f.err
}

func (f *fakeLister) set(l models.Listing) {
	f.mu.Lock()
	f.listing = l
	f.mu.Unlock()
}

func note(p string, tags ...string) models.Note {
	n := models.NewNote(p, time.Unix(1700000000, 0), 10)
	n.Tags = tags
	return n
}

func TestReloadBuildsDerivedState(t *testing.T) {
	lister := &fakeLister{listing: models.Listing{
		Notes:   []models.Note{note("a/b.md", "go"), note("c.md", "go", "work")},
		Folders: []string{"a", "a/c"},
	}}
	lib := New(lister)
	if lib.Exists("b") {
		t.Fatal("empty library resolved a link")
	}
	if err := lib.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !lib.Exists("B") || !lib.Exists("a/b") || lib.Exists("nope") {
		t.Error("link index not rebuilt")
	}
	tree := lib.Tree()
	a := tree.Find("a")
	if a == nil || a.NoteCount != 1 || a.Children["c"] == nil || a.Children["c"].NoteCount != 0 {
		t.Errorf("tree = %+v", a)
	}
	tags := lib.Tags()
	if tags["go"] != 2 || tags["work"] != 1 {
		t.Errorf("tags = %v", tags)
	}
	if lib.Generation() != 2 {
		t.Errorf("generation = %d, want 2", lib.Generation())
	}
}

func TestReloadErrorKeepsPreviousState(t *testing.T) {
	lister := &fakeLister{listing: models.Listing{Notes: []models.Note{note("a.md")}}}
	lib := New(lister)
	_ = lib.Reload(context.Background())
	lister.err = errors.New("disk gone")
	if err := lib.Reload(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := lib.Note("a.md"); !ok {
		t.Error("state lost after failed reload")
	}
}

func TestUpdateNote(t *testing.T) {
	lister := &fakeLister{listing: models.Listing{Notes: []models.Note{note("a.md", "old")}}}
	lib := New(lister)
	_ = lib.Reload(context.Background())
	gen := lib.Generation()

	updated := note("a.md", "new")
	updated.Size = 99
	lib.UpdateNote(updated)
	if got, _ := lib.Note("a.md"); got.Size != 99 {
		t.Errorf("note = %+v", got)
	}
	if lib.Tags()["new"] != 1 || lib.Tags()["old"] != 0 {
		t.Errorf("tags = %v", lib.Tags())
	}
	if lib.Generation() != gen {
		t.Error("metadata update rebuilt the link index")
	}
	if lib.Tree().Notes[0].Size != 99 {
		t.Error("tree not refreshed")
	}

	var notified atomic.Int32
	lib.OnReload(func(uint64) { notified.Add(1) })
	lib.UpdateNote(note("fresh.md"))
	if !lib.Exists("fresh") || lib.Generation() != gen+1 || notified.Load() != 1 {
		t.Error("new note not added with rebuild")
	}
}

func TestScheduleReloadCoalesces(t *testing.T) {
	lister := &fakeLister{}
	lib := New(lister, WithReloadDelay(20*time.Millisecond))
	defer lib.Close()

	done := make(chan uint64, 4)
	lib.OnReload(func(gen uint64) { done <- gen })

	lister.set(models.Listing{Notes: []models.Note{note("x.md")}})
	for i := 0; i < 5; i++ {
		lib.ScheduleReload()
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never ran")
	}
	time.Sleep(60 * time.Millisecond)
	if n := lister.calls.Load(); n != 1 {
		t.Errorf("lister calls = %d, want 1", n)
	}
	if !lib.Exists("x") {
		t.Error("scheduled reload did not install listing")
	}
}
