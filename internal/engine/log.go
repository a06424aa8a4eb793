package engine

import "fmt"

// manifestPreviewLimit caps the file names shown per log entry.
const manifestPreviewLimit = 5

// Log returns a page of history, newest first, each commit carrying a
// short preview of the files it recorded.
func (e *Engine) Log(q LogQuery) ([]LogEntry, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}

	commits, err := e.db.Commits(q)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	entries := make([]LogEntry, len(commits))
	for i, c := range commits {
		files, total, err := e.db.ManifestPreview(c.ID, manifestPreviewLimit)
		if err != nil {
			return nil, fmt.Errorf("loading files of %s: %w", c.ShortHash(), err)
		}
		entries[i] = LogEntry{Commit: c, Files: files, TotalFiles: total}
	}
	return entries, nil
}
