package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/library"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/session"
	"github.com/starford/notegraph/internal/testutil"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

type env struct {
	router http.Handler
	vault  string
	svc    *noteservice.Service
	lib    *library.Library
}

type envOptions struct {
	token         string
	searchOff     bool
	files         map[string]string
	eventsHandler http.Handler
}

// testEnv sets up a temp vault, SQLite DB, services, and router for testing.
// An empty token means auth is disabled.
func testEnv(t *testing.T, token string) *env {
	t.Helper()
	return testEnvWith(t, envOptions{token: token})
}

func testEnvWith(t *testing.T, o envOptions) *env {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFiles(t, vaultDir, o.files)
	db := testutil.TestDB(t)
	if err := index.Sync(db, store, nil); err != nil {
		t.Fatal(err)
	}

	svc := noteservice.NewService(store, db, nil)
	lib := library.New(svc)
	if err := lib.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	sess := session.New(svc, lib)
	t.Cleanup(func() { sess.Close(context.Background()) })

	router := NewRouter(Deps{
		Notes:   svc,
		Library: lib,
		Session: sess,
		Images:  attachments.New(store),
		Events:  o.eventsHandler,
		Settings: Settings{
			Name:          "notegraph",
			Version:       "test",
			SearchEnabled: !o.searchOff,
			AuthEnabled:   o.token != "",
			Token:         o.token,
		},
	})
	return &env{router: router, vault: vaultDir, svc: svc, lib: lib}
}

func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, w.Body.String())
	}
	return v
}

func TestSaveAndGetNote(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/notes/hello", map[string]string{"content": "# Hello\nWorld"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[NoteDetail](t, w)
	if created.Path != "hello.md" {
		t.Errorf("path = %q, want extension appended", created.Path)
	}

	w = e.do(t, http.MethodGet, "/notes/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decode[NoteDetail](t, w)
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if note.Metadata.Lines != 2 || note.Metadata.Size != 13 {
		t.Errorf("metadata = %+v", note.Metadata)
	}
	if !e.lib.Exists("hello") {
		t.Error("library should know the new note")
	}

	w = e.do(t, http.MethodPost, "/notes/hello.md", map[string]string{"content": "# Hello again"})
	if w.Code != http.StatusOK {
		t.Errorf("overwrite status = %d, want 200", w.Code)
	}
}

func TestSaveWithOptimisticLocking(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/notes/lock.md", map[string]string{"content": "v1"})
	created := decode[NoteDetail](t, w)

	send := func(ifMatch string) int {
		b, _ := json.Marshal(map[string]string{"content": "v2"})
		req := httptest.NewRequest(http.MethodPost, "/notes/lock.md", bytes.NewReader(b))
		req.Header.Set("If-Match", `"`+ifMatch+`"`)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(created.Checksum); code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d", code)
	}
	if code := send(created.Checksum); code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", code)
	}

	b, _ := json.Marshal(map[string]string{"content": "x"})
	req := httptest.NewRequest(http.MethodPost, "/notes/ghost.md", bytes.NewReader(b))
	req.Header.Set("If-Match", "abc")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", rec.Code)
	}
}

func TestSaveNote_InvalidInput(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodPost, "/notes/con", map[string]string{"content": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("reserved name = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/notes/a.md", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{"bye.md": "gone"}})

	if w := e.do(t, http.MethodDelete, "/notes/bye.md", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes/bye.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/notes/bye.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if e.lib.Exists("bye") {
		t.Error("library still lists deleted note")
	}
}

func TestListNotes(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{
		"a.md":                      "---\ntags: [x]\n---\n",
		"sub/b.md":                  "b",
		"sub/_attachments/shot.png": string(pngData),
		"empty/.keep":               "",
	}})

	w := e.do(t, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	listing := decode[models.Listing](t, w)
	if len(listing.Notes) != 3 {
		t.Errorf("len(notes) = %d, want 3", len(listing.Notes))
	}
	want := "empty,sub,sub/_attachments"
	if got := strings.Join(listing.Folders, ","); got != want {
		t.Errorf("folders = %s, want %s", got, want)
	}
	for _, n := range listing.Notes {
		if n.Path == "a.md" && (len(n.Tags) != 1 || n.Tags[0] != "x") {
			t.Errorf("tags for a.md = %v", n.Tags)
		}
	}
}

func TestMoveNote(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{"a.md": "a", "taken.md": "t"}})

	w := e.do(t, http.MethodPost, "/notes/move", map[string]string{"from": "a.md", "to": "sub/b"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	if moved := decode[models.Note](t, w); moved.Path != "sub/b.md" {
		t.Errorf("moved path = %q", moved.Path)
	}
	if !e.lib.Exists("sub/b") || e.lib.Exists("a") {
		t.Error("library not refreshed after move")
	}

	w = e.do(t, http.MethodPost, "/notes/move", map[string]string{"from": "sub/b.md", "to": "taken.md"})
	if w.Code != http.StatusConflict {
		t.Errorf("move onto existing = %d, want 409", w.Code)
	}
	w = e.do(t, http.MethodPost, "/notes/move", map[string]string{"from": "sub/b.md"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("move without target = %d, want 400", w.Code)
	}
}

func TestFolderRoutes(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{"projects/plan.md": "p"}})

	w := e.do(t, http.MethodPost, "/folders", map[string]string{"path": "projects/2024"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create folder = %d, body = %s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodPost, "/folders", map[string]string{"path": "bad|name"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid folder = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodPost, "/folders/rename", map[string]string{"path": "projects/2024", "name": "archive"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[FolderResponse](t, w); got.Path != "projects/archive" {
		t.Errorf("renamed path = %q", got.Path)
	}

	w = e.do(t, http.MethodPost, "/folders/move", map[string]string{"from": "projects", "to": "work"})
	if w.Code != http.StatusOK {
		t.Fatalf("move folder = %d", w.Code)
	}
	if !e.lib.Exists("work/plan") {
		t.Error("moved note missing from library")
	}

	if w := e.do(t, http.MethodDelete, "/folders/work", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete folder = %d, want 204", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/folders/work", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete missing folder = %d, want 404", w.Code)
	}
	if _, err := os.Stat(filepath.Join(e.vault, "work")); !os.IsNotExist(err) {
		t.Error("folder still on disk")
	}
}

func TestTreeAndTags(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{
		"projects/plan.md": "---\ntags: [Go, work]\n---\n",
		"inbox.md":         "---\ntags: go\n---\n",
	}})

	w := e.do(t, http.MethodGet, "/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	var tree struct {
		NoteCount int `json:"noteCount"`
		Children  map[string]struct {
			Path  string        `json:"path"`
			Notes []models.Note `json:"notes"`
		} `json:"children"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tree); err != nil {
		t.Fatal(err)
	}
	if tree.NoteCount != 2 {
		t.Errorf("noteCount = %d, want 2", tree.NoteCount)
	}
	if p := tree.Children["projects"]; p.Path != "projects" || len(p.Notes) != 1 {
		t.Errorf("projects folder = %+v", p)
	}

	tags := decode[map[string]int](t, e.do(t, http.MethodGet, "/tags", nil))
	if tags["go"] != 2 || tags["work"] != 1 {
		t.Errorf("tags = %v", tags)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{
		"find.md":  "intro\nthe uniquetoken here\noutro",
		"other.md": "nothing",
	}})

	w := e.do(t, http.MethodGet, "/search?q=UniqueToken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) != 1 {
		t.Fatalf("search results = %d, want 1", len(resp.Results))
	}
	hit := resp.Results[0]
	if hit.Name != "find" || len(hit.Matches) != 1 || hit.Matches[0].LineNumber != 2 {
		t.Errorf("hit = %+v", hit)
	}
	if hit.Matches[0].Context != "intro\nthe uniquetoken here\noutro" {
		t.Errorf("context = %q", hit.Matches[0].Context)
	}

	if w := e.do(t, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestSearchDisabled(t *testing.T) {
	e := testEnvWith(t, envOptions{searchOff: true})
	if w := e.do(t, http.MethodGet, "/search?q=x", nil); w.Code != http.StatusForbidden {
		t.Errorf("disabled search = %d, want 403", w.Code)
	}
	cfg := decode[ConfigResponse](t, e.do(t, http.MethodGet, "/config", nil))
	if cfg.SearchEnabled || cfg.Name != "notegraph" || cfg.Security.Enabled {
		t.Errorf("config = %+v", cfg)
	}
}

func TestGraphAndBacklinks(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{
		"a.md":     "links to [[b]] and [[Missing]]",
		"sub/b.md": "links to [[a]]",
	}})

	w := e.do(t, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	g := decode[models.Graph](t, w)
	if len(g.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(g.Nodes))
	}
	resolved := map[string]bool{}
	for _, edge := range g.Edges {
		resolved[edge.From+"->"+edge.To] = edge.Resolved
	}
	if len(g.Edges) != 3 || !resolved["a.md->b"] || resolved["a.md->Missing"] || !resolved["sub/b.md->a"] {
		t.Errorf("edges = %+v", g.Edges)
	}

	bl := decode[BacklinksResponse](t, e.do(t, http.MethodGet, "/backlinks/sub/b.md", nil))
	if len(bl.Backlinks) != 1 || bl.Backlinks[0] != "a.md" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestContentTools(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{"Known.md": "k"}})

	w := e.do(t, http.MethodPost, "/render", map[string]string{"content": "[[Known]] [[Nope]]"})
	html := decode[RenderResponse](t, w).HTML
	if strings.Count(html, `class="wikilink"`) != 1 || strings.Count(html, "wikilink-broken") != 1 {
		t.Errorf("render = %s", html)
	}

	w = e.do(t, http.MethodPost, "/render", map[string]string{"path": "notes/a.md", "content": "![x](pic.png)"})
	if html := decode[RenderResponse](t, w).HTML; !strings.Contains(html, `src="/api/images/notes/pic.png"`) {
		t.Errorf("image src not rewritten: %s", html)
	}

	headings := decode[OutlineResponse](t, e.do(t, http.MethodPost, "/outline", map[string]string{"content": "# A\n## B\n## B"})).Headings
	if len(headings) != 3 || headings[2].Slug != "b-1" {
		t.Errorf("outline = %+v", headings)
	}

	fm := decode[FrontmatterResponse](t, e.do(t, http.MethodPost, "/frontmatter", map[string]string{"content": "---\ntitle: T\ntags: [A]\n---\nbody"}))
	if fm.Metadata["title"] != "T" || len(fm.Tags) != 1 || fm.Tags[0] != "a" {
		t.Errorf("frontmatter = %+v", fm)
	}

	var res struct {
		Valid bool   `json:"valid"`
		Kind  string `json:"error"`
	}
	w = e.do(t, http.MethodPost, "/validate", map[string]string{"name": "a:b"})
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.Kind != "FORBIDDEN_CHARS" {
		t.Errorf("validate name = %+v", res)
	}
	w = e.do(t, http.MethodPost, "/validate", map[string]string{"path": "ok/fine.md"})
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || !res.Valid {
		t.Errorf("validate path = %s", w.Body.String())
	}
	if w := e.do(t, http.MethodPost, "/validate", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("validate empty = %d, want 400", w.Code)
	}
}

func uploadImage(t *testing.T, router http.Handler, filename, notePath string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	if notePath != "" {
		_ = mw.WriteField("note_path", notePath)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeImage(t *testing.T) {
	e := testEnv(t, "")

	w := uploadImage(t, e.router, "My Shot.PNG", "projects/plan.md", pngData)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	saved := decode[attachments.Saved](t, w)
	if !strings.HasPrefix(saved.Path, "projects/_attachments/My_Shot-") || !strings.HasSuffix(saved.Path, ".png") {
		t.Errorf("saved path = %q", saved.Path)
	}
	if !strings.HasPrefix(saved.Markdown, "![My_Shot](_attachments/My_Shot-") {
		t.Errorf("markdown = %q", saved.Markdown)
	}

	data, err := os.ReadFile(filepath.Join(e.vault, filepath.FromSlash(saved.Path)))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if !bytes.Equal(data, pngData) {
		t.Error("content mismatch")
	}

	w = e.do(t, http.MethodGet, "/images/"+saved.Path, nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngData) {
		t.Errorf("serve = %d", w.Code)
	}
}

func TestUploadImage_Rejected(t *testing.T) {
	e := testEnv(t, "")

	if w := uploadImage(t, e.router, "fake.png", "", []byte("not an image at all")); w.Code != http.StatusBadRequest {
		t.Errorf("mismatched content = %d, want 400", w.Code)
	}
	if w := uploadImage(t, e.router, "doc.pdf", "", []byte("%PDF-1.4")); w.Code != http.StatusBadRequest {
		t.Errorf("pdf = %d, want 400", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestServeImage_Errors(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{"secret.md": "s"}})

	cases := map[string]int{
		"/images/../outside.png":          http.StatusForbidden,
		"/images/secret.md":               http.StatusBadRequest,
		"/images/_attachments/absent.png": http.StatusNotFound,
	}
	for target, want := range cases {
		if w := e.do(t, http.MethodGet, target, nil); w.Code != want {
			t.Errorf("GET %s = %d, want %d", target, w.Code, want)
		}
	}
}

func TestSessionFlow(t *testing.T) {
	e := testEnvWith(t, envOptions{files: map[string]string{
		"plan.md":  "# Plan\n\nSee [[Known]] and [[Nope]].",
		"Known.md": "k",
	}})

	if w := e.do(t, http.MethodPut, "/session/content", map[string]any{"session_id": "x", "content": "y"}); w.Code != http.StatusNotFound {
		t.Errorf("edit without open note = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/session/open", map[string]string{"path": "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("open missing = %d, want 404", w.Code)
	}

	w := e.do(t, http.MethodPost, "/session/open", map[string]string{"path": "plan"})
	if w.Code != http.StatusOK {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	st := decode[session.State](t, w)
	if st.Path != "plan.md" || st.ID == "" || len(st.Derived.Outline) != 1 {
		t.Fatalf("state = %+v", st)
	}

	w = e.do(t, http.MethodPut, "/session/content", map[string]any{"session_id": st.ID, "content": "# Plan\n\nSee [[Known]] and [[Nope]] and more.", "cursor": 10})
	if w.Code != http.StatusOK {
		t.Fatalf("edit = %d, body = %s", w.Code, w.Body.String())
	}
	if edited := decode[session.State](t, w); !edited.Dirty {
		t.Error("edit should mark the session dirty")
	}
	if w := e.do(t, http.MethodPut, "/session/content", map[string]any{"session_id": "stale", "content": "z"}); w.Code != http.StatusConflict {
		t.Errorf("stale edit = %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodPost, "/session/save", nil)
	if saved := decode[session.State](t, w); saved.Dirty || saved.SavedAt == nil {
		t.Errorf("save state = %+v", saved)
	}
	data, _ := os.ReadFile(filepath.Join(e.vault, "plan.md"))
	if !strings.HasSuffix(string(data), "and more.") {
		t.Errorf("disk content = %q", data)
	}

	hl := decode[struct {
		Total int `json:"total"`
	}](t, e.do(t, http.MethodPost, "/session/highlight", map[string]string{"term": "and"}))
	if hl.Total != 2 {
		t.Errorf("highlight total = %d, want 2", hl.Total)
	}
	preview := decode[session.Preview](t, e.do(t, http.MethodGet, "/session/preview", nil))
	if strings.Count(preview.HTML, "<mark") != 2 || !strings.Contains(preview.HTML, "wikilink-broken") {
		t.Errorf("preview = %s", preview.HTML)
	}
	if w := e.do(t, http.MethodPost, "/session/highlight/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad index = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/session/highlight", nil); w.Code != http.StatusOK {
		t.Errorf("clear highlight = %d", w.Code)
	}

	undone := decode[session.State](t, e.do(t, http.MethodPost, "/session/undo", nil))
	if undone.Content != "# Plan\n\nSee [[Known]] and [[Nope]]." || !undone.CanRedo {
		t.Errorf("undo = %+v", undone)
	}
	redone := decode[session.State](t, e.do(t, http.MethodPost, "/session/redo", nil))
	if !strings.HasSuffix(redone.Content, "and more.") {
		t.Errorf("redo content = %q", redone.Content)
	}

	closed := decode[session.State](t, e.do(t, http.MethodPost, "/session/close", nil))
	if closed.Open {
		t.Error("session still open after close")
	}
	if w := e.do(t, http.MethodGet, "/session/preview", nil); w.Code != http.StatusNotFound {
		t.Errorf("preview after close = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")

	b, _ := json.Marshal(map[string]string{"content": "test"})
	req := httptest.NewRequest(http.MethodPost, "/notes/auth.md", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestUploadImage_AuthProtected(t *testing.T) {
	e := testEnv(t, "secret")
	if w := uploadImage(t, e.router, "x.png", "", pngData); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingEvents is a minimal SSE handler: it writes headers and blocks
// until the request context is done.
var blockingEvents = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWith(t, envOptions{token: "secret", eventsHandler: blockingEvents})
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	e := testEnvWith(t, envOptions{eventsHandler: blockingEvents})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("SSE = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWith(t, envOptions{token: "tok", eventsHandler: blockingEvents})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
