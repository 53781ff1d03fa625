package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// Changes holds the added or modified lines of each changed file, keyed by
// slash-separated path relative to a scan root.
type Changes map[string]map[int]bool

// NewChanges indexes files by their path relative to root. Files outside root
// are left out.
func NewChanges(root string, files []ChangedFile) (Changes, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	c := make(Changes, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(abs, f.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		lines := make(map[int]bool, len(f.ChangedLines))
		for _, l := range f.ChangedLines {
			lines[l] = true
		}
		c[filepath.ToSlash(rel)] = lines
	}
	return c, nil
}

// Touches reports whether line of the file at rel was added or modified.
func (c Changes) Touches(rel string, line int) bool {
	return c[rel][line]
}

// GetChangedFiles runs git diff in dir against baseRef and returns the changed
// files with their added or modified line numbers. Paths are absolute.
func GetChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	top, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return nil, fmt.Errorf("git rev-parse failed: %w", err)
	}
	output, err := exec.CommandContext(ctx, "git", "-C", dir, "diff", "-U0", baseRef).Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	changes, err := parseDiff(output)
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(string(top))
	for i := range changes {
		changes[i].Path = filepath.Join(root, filepath.FromSlash(changes[i].Path))
	}
	return changes, nil
}

// chunkHeader matches @@ -oldStart,oldLen +newStart,newLen @@; only the new side is used.
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/"), ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil || !strings.HasPrefix(line, "@@") {
			continue
		}
		matches := chunkHeader.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		start, _ := strconv.Atoi(matches[1])
		count := 1
		if matches[2] != "" {
			count, _ = strconv.Atoi(matches[2])
		}
		// count 0 is a pure deletion: no line of the new file changed
		for i := 0; i < count; i++ {
			currentFile.ChangedLines = append(currentFile.ChangedLines, start+i)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read diff: %w", err)
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}
	return changes, nil
}
