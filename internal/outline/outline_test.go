package outline

import (
	"testing"
)

func TestExtractDuplicateSlugs(t *testing.T) {
	got := Extract("# Intro\ntext\n## Intro\n### Intro\n")
	want := []string{"intro", "intro-1", "intro-2"}
	if len(got) != len(want) {
		t.Fatalf("got %d headings, want %d", len(got), len(want))
	}
	for i, h := range got {
		if h.Slug != want[i] {
			t.Errorf("heading %d slug = %q, want %q", i, h.Slug, want[i])
		}
	}
}

func TestExtractSkipsFrontmatterAndFences(t *testing.T) {
	content := "---\ntitle: x\n# not a heading\n---\n# Real\n```go\n# comment in code\n```\n~~~\n## also code\n```\n~~~\n## After Fence\n"
	got := Extract(content)
	if len(got) != 2 {
		t.Fatalf("headings = %+v, want 2", got)
	}
	if got[0].Text != "Real" || got[0].Line != 5 || got[0].Level != 1 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Text != "After Fence" || got[1].Line != 13 || got[1].Level != 2 {
		t.Errorf("second = %+v", got[1])
	}
}

func TestExtractRequiresSpace(t *testing.T) {
	got := Extract("#tag\n####### seven\n###### Six\n")
	if len(got) != 1 || got[0].Level != 6 {
		t.Errorf("headings = %+v, want only level 6", got)
	}
}

func TestExtractUnclosedFrontmatterIsContent(t *testing.T) {
	got := Extract("---\n# Heading\n")
	if len(got) != 1 || got[0].Line != 2 {
		t.Errorf("headings = %+v", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":          "hello-world",
		"What's new?":          "whats-new",
		"  Spaced   Out  ":     "-spaced-out-",
		"a -- b":               "a-b",
		"Version 2.0 (beta)":   "version-20-beta",
		"snake_case stays":     "snake_case-stays",
		"Émoji 🎉 and accents": "moji-and-accents",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSluggerCountsPerBase(t *testing.T) {
	s := NewSlugger()
	got := []string{s.Slug("A"), s.Slug("B"), s.Slug("A"), s.Slug("b"), s.Slug("A")}
	want := []string{"a", "b", "a-1", "b-1", "a-2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slug %d = %q, want %q", i, got[i], want[i])
		}
	}
}
