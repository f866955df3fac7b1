package recording

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff compares the freshly staged recordings against the published
// destination tree and returns a human-readable report: per-file diffs for
// changed recordings plus lists of added and removed paths.
func Diff(stagedDir, destDir string) (string, error) {
	staged, err := listFiles(stagedDir)
	if err != nil {
		return "", fmt.Errorf("failed to list staged recordings: %w", err)
	}
	published, err := listFiles(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to list published recordings: %w", err)
	}

	dmp := diffmatchpatch.New()
	var report strings.Builder

	for _, rel := range staged {
		destPath := filepath.Join(destDir, rel)
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			report.WriteString("added: " + rel + "\n")
			continue
		}

		before, err := os.ReadFile(destPath)
		if err != nil {
			return "", err
		}
		after, err := os.ReadFile(filepath.Join(stagedDir, rel))
		if err != nil {
			return "", err
		}
		if string(before) == string(after) {
			continue
		}

		diffs := dmp.DiffMain(string(before), string(after), false)
		report.WriteString("changed: " + rel + "\n")
		report.WriteString(dmp.DiffPrettyText(diffs))
		report.WriteString("\n")
	}

	stagedSet := make(map[string]struct{}, len(staged))
	for _, rel := range staged {
		stagedSet[rel] = struct{}{}
	}
	for _, rel := range published {
		if _, ok := stagedSet[rel]; !ok {
			report.WriteString("removed: " + rel + "\n")
		}
	}

	if report.Len() == 0 {
		return "recordings are identical\n", nil
	}
	return report.String(), nil
}

// listFiles returns the relative paths of regular files under root, sorted.
// A missing root yields an empty list.
func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
