// Package normalize rewrites nondeterministic fields in recorded responses
// so that re-recording produces reviewable diffs. Normalization is cosmetic
// cleanup: a failure here is logged and never fails the run.
package normalize

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"stackharness/internal/logger"
)

// Pattern pairs a regex with the replacement for its matches. An empty
// Replacement means the "<name>" placeholder.
type Pattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Engine applies the pattern table to recorded artifacts.
type Engine struct {
	patterns []Pattern
}

// NewEngine creates an engine with the built-in patterns.
func NewEngine() *Engine {
	e := &Engine{}
	e.initBuiltinPatterns()
	return e
}

// initBuiltinPatterns registers the sources of diff noise seen in recorded
// inference responses.
func (e *Engine) initBuiltinPatterns() {
	e.patterns = append(e.patterns, Pattern{
		Name:    "timestamp",
		Pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?`),
	})

	e.patterns = append(e.patterns, Pattern{
		Name:        "unix_epoch",
		Pattern:     regexp.MustCompile(`"created":\s*\d{10}`),
		Replacement: `"created": 0`,
	})

	e.patterns = append(e.patterns, Pattern{
		Name:    "uuid",
		Pattern: regexp.MustCompile(`[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`),
	})

	// Completion and request ids from OpenAI-compatible servers.
	e.patterns = append(e.patterns, Pattern{
		Name:    "completion_id",
		Pattern: regexp.MustCompile(`chatcmpl-[A-Za-z0-9]+`),
	})
	e.patterns = append(e.patterns, Pattern{
		Name:    "request_id",
		Pattern: regexp.MustCompile(`req_[A-Za-z0-9]+`),
	})

	e.patterns = append(e.patterns, Pattern{
		Name:        "latency",
		Pattern:     regexp.MustCompile(`"(latency_ms|duration_ms|total_time)":\s*[0-9.]+`),
		Replacement: `"$1": 0`,
	})

	e.patterns = append(e.patterns, Pattern{
		Name:    "memory_address",
		Pattern: regexp.MustCompile(`0x[a-fA-F0-9]{8,16}`),
	})
}

// NormalizeText replaces every pattern match with its replacement and
// returns the normalized text plus the replacement count.
func (e *Engine) NormalizeText(text string) (string, int) {
	replaced := 0
	for _, p := range e.patterns {
		replacement := p.Replacement
		if replacement == "" {
			replacement = "<" + p.Name + ">"
		}
		replaced += len(p.Pattern.FindAllStringIndex(text, -1))
		text = p.Pattern.ReplaceAllString(text, replacement)
	}
	return text, replaced
}

// NormalizeFile rewrites one artifact in place. Returns the number of
// replacements made.
func (e *Engine) NormalizeFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	normalized, count := e.NormalizeText(string(data))
	if count == 0 {
		return 0, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(normalized), info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return count, nil
}

// NormalizeTree walks the destination tree and normalizes every regular
// file. It returns the number of files touched and total replacements.
func (e *Engine) NormalizeTree(root string) (files int, replacements int, err error) {
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}

		count, err := e.NormalizeFile(path)
		if err != nil {
			return err
		}
		if count > 0 {
			files++
			replacements += count
			logger.Debug("Normalized recording", "file", path, "replacements", count)
		}
		return nil
	})
	return files, replacements, err
}
