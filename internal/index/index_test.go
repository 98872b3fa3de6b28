package index

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/storage"
)

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "notegraph.db")
}

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(testDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count, version int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil || version != schemaVersion {
		t.Errorf("user_version = %d, %v; want %d", version, err, schemaVersion)
	}
}

func TestOpen_KeepsCatalogAcrossRestarts(t *testing.T) {
	p := testDBPath(t)
	db, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.UpsertNote(NoteRow{Path: "kept.md", Checksum: "k"}, "body", nil)
	db.Close()

	db, err = Open(p)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if cs, _ := db.GetChecksum("kept.md"); cs != "k" {
		t.Errorf("checksum after reopen = %q", cs)
	}
}

func TestOpen_SchemaChangeDropsCatalog(t *testing.T) {
	p := testDBPath(t)
	db, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.UpsertNote(NoteRow{Path: "old.md", Checksum: "o"}, "body", []string{"x"})
	if _, err := db.conn.Exec(`PRAGMA user_version = 1`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	paths, err := db.AllPaths()
	if err != nil || len(paths) != 0 {
		t.Errorf("paths after schema change = %v, %v", paths, err)
	}
	if links, _ := db.Links(); len(links) != 0 {
		t.Errorf("links after schema change = %v", links)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "hello.md",
		Title:     "Hello World",
		Checksum:  "abc123",
		Tags:      []string{"go", "test"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "This is a hello world note.", []string{"other.md"}); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", UpdatedAt: now}, "body", []string{"Plan"})
	_ = db.UpsertNote(NoteRow{Path: "c.md", Checksum: "2", UpdatedAt: now}, "body", []string{"projects/plan.md"})
	_ = db.UpsertNote(NoteRow{Path: "d.md", Checksum: "3", UpdatedAt: now}, "body", []string{"Projects/Plan"})
	_ = db.UpsertNote(NoteRow{Path: "e.md", Checksum: "4", UpdatedAt: now}, "body", []string{"Other"})
	_ = db.UpsertNote(NoteRow{Path: "Projects/Plan.md", Checksum: "5", UpdatedAt: now}, "body", []string{"Plan"})

	bl, err := db.Backlinks("Projects/Plan.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	want := []string{"a.md", "c.md", "d.md"}
	if len(bl) != len(want) {
		t.Fatalf("backlinks = %v, want %v", bl, want)
	}
	for i := range want {
		if bl[i] != want[i] {
			t.Errorf("backlinks[%d] = %q, want %q", i, bl[i], want[i])
		}
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"target"})

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted note still has checksum %q", cs)
	}
	bl, _ := db.Backlinks("target.md")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "up.md", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "old body", []string{"x"})
	_ = db.UpsertNote(NoteRow{Path: "up.md", Title: "New", Checksum: "2", Tags: []string{"new"}, UpdatedAt: now}, "new body", []string{"y"})

	cs, _ := db.GetChecksum("up.md")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	bl, _ := db.Backlinks("x.md")
	if len(bl) != 0 {
		t.Error("old link should be removed on upsert")
	}
	bl, _ = db.Backlinks("y.md")
	if len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "s.md", Title: "Search Me", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}

func TestSearch_LikeWildcardsAreLiteral(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "pct.md", Checksum: "1", UpdatedAt: now}, "growth of 100% this year", nil)
	_ = db.UpsertNote(NoteRow{Path: "plain.md", Checksum: "2", UpdatedAt: now}, "growth of 1000 units", nil)

	results, err := db.Search("100%", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "pct.md" {
		t.Fatalf("results = %+v, want only pct.md", results)
	}
	if results[0].Body != "growth of 100% this year" {
		t.Errorf("body = %q", results[0].Body)
	}
}

func TestTagCountsAndNoteTags(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", Tags: []string{"go", "work"}, UpdatedAt: now}, "", nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Checksum: "2", Tags: []string{"go"}, UpdatedAt: now}, "", nil)
	_ = db.UpsertNote(NoteRow{Path: "c.md", Checksum: "3", UpdatedAt: now}, "", nil)

	counts, err := db.TagCounts()
	if err != nil {
		t.Fatalf("TagCounts: %v", err)
	}
	if counts["go"] != 2 || counts["work"] != 1 || len(counts) != 2 {
		t.Errorf("counts = %v", counts)
	}

	tags, err := db.NoteTags()
	if err != nil {
		t.Fatalf("NoteTags: %v", err)
	}
	if len(tags["a.md"]) != 2 || len(tags["c.md"]) != 0 {
		t.Errorf("note tags = %v", tags)
	}
}

func TestGetNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "n.md", Title: "N", Checksum: "1", Tags: []string{"x"}, UpdatedAt: time.Now()}, "the body", nil)

	n, err := db.GetNote("n.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Title != "N" || n.Body != "the body" || len(n.Tags) != 1 {
		t.Errorf("note = %+v", n)
	}
	if _, err := db.GetNote("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note err = %v", err)
	}
}

func TestLinks(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "b.md", Checksum: "1", UpdatedAt: now}, "", []string{"Z", "A"})
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "2", UpdatedAt: now}, "", []string{"b"})

	links, err := db.Links()
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	want := []LinkRow{{"a.md", "b"}, {"b.md", "Z"}, {"b.md", "A"}}
	if len(links) != len(want) {
		t.Fatalf("links = %v", links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %v, want %v", i, links[i], want[i])
		}
	}
}

func TestSyncIndexesAndPrunes(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("keep.md", []byte("---\ntags: [a]\n---\n# Keep\n[[other]]"))
	_ = db.UpsertNote(NoteRow{Path: "gone.md", Checksum: "x", UpdatedAt: time.Now()}, "", nil)

	if err := Sync(db, store, nil); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	n, err := db.GetNote("keep.md")
	if err != nil {
		t.Fatalf("keep.md not indexed: %v", err)
	}
	if n.Title != "Keep" || len(n.Tags) != 1 || n.Tags[0] != "a" {
		t.Errorf("indexed row = %+v", n)
	}
	if cs, _ := db.GetChecksum("gone.md"); cs != "" {
		t.Error("stale row not pruned")
	}
	bl, _ := db.Backlinks("other.md")
	if len(bl) != 1 {
		t.Errorf("backlinks = %v", bl)
	}
}
