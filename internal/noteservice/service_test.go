package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/testutil"
)

func newService(t *testing.T, files map[string]string) *Service {
	t.Helper()
	dir, store := testutil.TestVault(t)
	testutil.WriteFiles(t, dir, files)
	db := testutil.TestDB(t)
	if err := index.Sync(db, store, nil); err != nil {
		t.Fatal(err)
	}
	return NewService(store, db, nil)
}

func TestNotePath(t *testing.T) {
	got, err := NotePath("/Projects//Plan ")
	if err != nil || got != "Projects/Plan.md" {
		t.Errorf("NotePath = %q, %v", got, err)
	}
	if _, err := NotePath("bad:name"); !IsValidation(err) {
		t.Errorf("NotePath(bad:name) err = %v, want validation error", err)
	}
	if got, _ := NotePath("draft.txt"); got != "draft.txt" {
		t.Errorf("explicit extension replaced: %q", got)
	}
}

func TestSaveAndGetNote(t *testing.T) {
	svc := newService(t, map[string]string{"Target.md": "# Target"})
	ctx := context.Background()

	n, err := svc.SaveNote(ctx, "a/Source.md", "---\ntags: [Work]\n---\n# Source\nsee [[Target]]\n")
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if n.Name != "Source.md" || n.Folder != "a" || len(n.Tags) != 1 || n.Tags[0] != "work" || n.Size == 0 {
		t.Errorf("saved entry = %+v", n)
	}

	d, err := svc.GetNote(ctx, "a/Source.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if d.Title != "Source" || len(d.Links) != 1 || d.Links[0] != "Target" || d.Metadata.Lines != 5 {
		t.Errorf("detail = %+v", d)
	}

	bl, err := svc.Backlinks(ctx, "Target.md")
	if err != nil || len(bl) != 1 || bl[0] != "a/Source.md" {
		t.Errorf("backlinks = %v, %v", bl, err)
	}
}

func TestGetNoteContentNotFound(t *testing.T) {
	svc := newService(t, nil)
	_, err := svc.GetNoteContent(context.Background(), "missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNoteChecksConcurrency(t *testing.T) {
	svc := newService(t, map[string]string{"n.md": "v1"})
	ctx := context.Background()

	if _, err := svc.UpdateNote(ctx, "n.md", "v2", checksum.Sum([]byte("other"))); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}
	if _, err := svc.UpdateNote(ctx, "n.md", "v2", `"`+checksum.Sum([]byte("v1"))+`"`); err != nil {
		t.Errorf("matching update: %v", err)
	}
	got, _ := svc.GetNoteContent(ctx, "n.md")
	if got != "v2" {
		t.Errorf("content = %q", got)
	}
}

func TestMoveNote(t *testing.T) {
	svc := newService(t, map[string]string{"a.md": "A", "b.md": "B"})
	ctx := context.Background()

	if _, err := svc.MoveNote(ctx, "a.md", "b"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("move onto existing = %v", err)
	}
	n, err := svc.MoveNote(ctx, "a.md", "archive/a")
	if err != nil {
		t.Fatalf("MoveNote: %v", err)
	}
	if n.Path != "archive/a.md" {
		t.Errorf("moved path = %q", n.Path)
	}
	hits, _ := svc.Search(ctx, "A")
	for _, h := range hits {
		if h.Path == "a.md" {
			t.Error("old path still searchable")
		}
	}
}

func TestDeleteNote(t *testing.T) {
	svc := newService(t, map[string]string{"gone.md": "bye"})
	ctx := context.Background()
	if err := svc.DeleteNote(ctx, "gone.md"); err != nil {
		t.Fatal(err)
	}
	if svc.NoteExists(ctx, "gone.md") {
		t.Error("note still exists")
	}
	if err := svc.DeleteNote(ctx, "gone.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestListNotesAttachesTags(t *testing.T) {
	svc := newService(t, map[string]string{
		"a.md":                 "---\ntags: [x, y]\n---\n",
		"b.md":                 "plain",
		"_attachments/img.png": "png",
		"Empty/.keep":          "",
	})
	l, err := svc.ListNotes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	byPath := map[string]models.Note{}
	for _, n := range l.Notes {
		byPath[n.Path] = n
	}
	if len(byPath["a.md"].Tags) != 2 || len(byPath["b.md"].Tags) != 0 {
		t.Errorf("tags not attached: %+v", l.Notes)
	}
	if byPath["_attachments/img.png"].Type != models.TypeImage {
		t.Errorf("image missing: %+v", l.Notes)
	}
	if len(l.Folders) != 2 {
		t.Errorf("folders = %v", l.Folders)
	}
}

func TestSearchLineMatches(t *testing.T) {
	svc := newService(t, map[string]string{
		"n.md": "intro\nfirst Needle\nmiddle\nneedle two\nneedle three\nneedle four\n",
	})
	hits, err := svc.Search(context.Background(), "needle")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Name != "n" {
		t.Fatalf("hits = %+v", hits)
	}
	m := hits[0].Matches
	if len(m) != 3 {
		t.Fatalf("matches = %+v, want 3", m)
	}
	if m[0].LineNumber != 2 || m[0].Context != "intro\nfirst Needle\nmiddle" {
		t.Errorf("first match = %+v", m[0])
	}
}

func TestTruncateContext(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'é'
	}
	m := lineMatches(string(long), "é")
	if len([]rune(m[0].Context)) != maxContextChars {
		t.Errorf("context length = %d", len([]rune(m[0].Context)))
	}
}

func TestFolders(t *testing.T) {
	svc := newService(t, map[string]string{"proj/plan.md": "[[x]]"})
	ctx := context.Background()

	if _, err := svc.CreateFolder(ctx, "bad|name"); !IsValidation(err) {
		t.Errorf("invalid folder err = %v", err)
	}
	renamed, err := svc.RenameFolder(ctx, "proj", "work")
	if err != nil || renamed != "work" {
		t.Fatalf("RenameFolder = %q, %v", renamed, err)
	}
	if _, err := svc.GetNote(ctx, "work/plan.md"); err != nil {
		t.Errorf("moved note unreadable: %v", err)
	}
	g, _ := svc.Graph(ctx)
	if len(g.Edges) != 1 || g.Edges[0].From != "work/plan.md" {
		t.Errorf("catalog not resynced: %+v", g.Edges)
	}
	if err := svc.DeleteFolder(ctx, "work"); err != nil {
		t.Fatal(err)
	}
	g, _ = svc.Graph(ctx)
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("graph after delete = %+v", g)
	}
}

func TestGraphResolvesEdges(t *testing.T) {
	svc := newService(t, map[string]string{
		"a.md":     "[[b]] [[Missing]]",
		"dir/b.md": "[[A|home]]",
	})
	g, err := svc.Graph(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 || g.Nodes[0].ID != "a.md" || g.Nodes[1].Label != "b" {
		t.Errorf("nodes = %+v", g.Nodes)
	}
	resolved := map[string]bool{}
	for _, e := range g.Edges {
		resolved[e.From+"->"+e.To] = e.Resolved
	}
	want := map[string]bool{"a.md->b": true, "a.md->Missing": false, "dir/b.md->A": true}
	for k, v := range want {
		if got, ok := resolved[k]; !ok || got != v {
			t.Errorf("edge %s resolved = %v (present %v), want %v", k, got, ok, v)
		}
	}

	tags, err := svc.ListTags(context.Background())
	if err != nil || len(tags) != 0 {
		t.Errorf("tags = %v, %v", tags, err)
	}
}
