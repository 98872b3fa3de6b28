package index

// NoteIndex is the catalog surface the note service depends on.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(path string) ([]string, error)
	Links() ([]LinkRow, error)
	TagCounts() (map[string]int, error)
	NoteTags() (map[string][]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
