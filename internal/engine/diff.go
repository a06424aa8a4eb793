package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContextLines = 3

// Diff renders a unified diff between the head commit and the working
// tree. Binary files are reported by name only.
func (e *Engine) Diff(ctx context.Context) ([]FileDiff, error) {
	state, _, err := e.headState()
	if err != nil {
		return nil, err
	}
	files, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}

	diffs := make([]FileDiff, 0)
	for _, entry := range classify(files, state) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var oldData, newData []byte
		switch entry.Kind {
		case ChangeNew:
			newData, err = e.ws.ReadFile(entry.Path)
		case ChangeModified:
			oldData, err = e.db.BlobBytes(state[entry.Path].BlobHash)
			if err == nil {
				newData, err = e.ws.ReadFile(entry.Path)
			}
		case ChangeDeleted:
			oldData, err = e.db.BlobBytes(state[entry.Path].BlobHash)
		}
		if err != nil {
			return nil, fmt.Errorf("diffing %s: %w", entry.Path, err)
		}

		fd := FileDiff{Path: entry.Path, Kind: entry.Kind}
		if isBinary(oldData) || isBinary(newData) {
			fd.Binary = true
			fd.Text = fmt.Sprintf("Binary file %s differs", entry.Path)
		} else {
			fd.Text = unifiedDiff(entry.Path, string(oldData), string(newData))
		}
		diffs = append(diffs, fd)
	}
	return diffs, nil
}

// isBinary applies the NUL-byte heuristic over the head of the content.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// diffLine is one line of output with its classification.
type diffLine struct {
	tag  byte // ' ', '+', or '-'
	text string
}

// unifiedDiff renders a line-based unified diff with hunk headers and
// three lines of context.
func unifiedDiff(path, oldText, newText string) string {
	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	lines := make([]diffLine, 0)
	for _, d := range diffs {
		tag := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			tag = '+'
		case diffmatchpatch.DiffDelete:
			tag = '-'
		}
		for _, text := range splitLines(d.Text) {
			lines = append(lines, diffLine{tag: tag, text: text})
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, hunk := range groupHunks(lines) {
		sb.WriteString(hunk)
	}
	return sb.String()
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// groupHunks slices the full line sequence into unified hunks, keeping
// diffContextLines of unchanged context around each change run.
func groupHunks(lines []diffLine) []string {
	changed := make([]bool, len(lines))
	anyChange := false
	for i, l := range lines {
		if l.tag != ' ' {
			changed[i] = true
			anyChange = true
		}
	}
	if !anyChange {
		return nil
	}

	include := make([]bool, len(lines))
	for i := range lines {
		if !changed[i] {
			continue
		}
		lo := i - diffContextLines
		if lo < 0 {
			lo = 0
		}
		hi := i + diffContextLines
		if hi > len(lines)-1 {
			hi = len(lines) - 1
		}
		for j := lo; j <= hi; j++ {
			include[j] = true
		}
	}

	var hunks []string
	oldLine, newLine := 1, 1
	i := 0
	for i < len(lines) {
		if !include[i] {
			if lines[i].tag != '+' {
				oldLine++
			}
			if lines[i].tag != '-' {
				newLine++
			}
			i++
			continue
		}

		oldStart, newStart := oldLine, newLine
		oldCount, newCount := 0, 0
		var body strings.Builder
		for i < len(lines) && include[i] {
			l := lines[i]
			body.WriteByte(l.tag)
			body.WriteString(l.text)
			body.WriteByte('\n')
			if l.tag != '+' {
				oldLine++
				oldCount++
			}
			if l.tag != '-' {
				newLine++
				newCount++
			}
			i++
		}
		hunks = append(hunks, fmt.Sprintf("@@ -%d,%d +%d,%d @@\n%s", oldStart, oldCount, newStart, newCount, body.String()))
	}
	return hunks
}
