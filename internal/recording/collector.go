// Package recording manages the request/response recordings the test suite
// produces: staging before a run, collection into a per-run holding area,
// publication into the persistent destination, and replay prechecks.
package recording

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
	"stackharness/internal/normalize"
)

// Collector moves recordings between the suite's working directory and the
// persistent destination tree.
type Collector struct {
	// WorkDir is the directory the suite writes recordings into during a run.
	WorkDir string
	// DestDir is the persistent destination tree kept under version control.
	DestDir string

	normalizer *normalize.Engine
}

// NewCollector creates a collector for the given working and destination
// directories.
func NewCollector(workDir, destDir string) *Collector {
	return &Collector{
		WorkDir:    workDir,
		DestDir:    destDir,
		normalizer: normalize.NewEngine(),
	}
}

// Holding is the ephemeral per-run artifact set, isolated so that
// publication copies exactly this run's output.
type Holding struct {
	Dir   string
	Files []string // paths relative to Dir
}

// PrepareStaging clears the working directory entirely so anything found
// after the run is attributable to this run.
func (c *Collector) PrepareStaging() error {
	if err := os.RemoveAll(c.WorkDir); err != nil {
		return fmt.Errorf("failed to clear working directory %s: %w", c.WorkDir, err)
	}
	if err := os.MkdirAll(c.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to recreate working directory %s: %w", c.WorkDir, err)
	}
	logger.Debug("Working recording directory reset", "dir", c.WorkDir)
	return nil
}

// CheckReplayable verifies a non-empty persisted recording set exists.
// Replay mode calls this before any container starts; replaying against
// nothing is a configuration problem, not a test failure.
func (c *Collector) CheckReplayable() error {
	count, err := countFiles(c.DestDir)
	if err != nil {
		return failure.New(failure.EmptyResult, "recording.replay",
			"recordings directory %s is not readable: %v", c.DestDir, err)
	}
	if count == 0 {
		return failure.New(failure.EmptyResult, "recording.replay",
			"no recordings under %s; record before replaying", c.DestDir)
	}
	logger.Info("Replay precheck passed", "recordings", count, "dir", c.DestDir)
	return nil
}

// Collect copies every artifact in the working directory into a fresh
// holding area, preserving relative paths. Zero collected artifacts means
// the run never exercised the recording path and is an error.
func (c *Collector) Collect() (*Holding, error) {
	holdingDir := filepath.Join(os.TempDir(), "stackharness-recordings-"+uuid.NewString())
	if err := os.MkdirAll(holdingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create holding area: %w", err)
	}

	holding := &Holding{Dir: holdingDir}
	err := filepath.WalkDir(c.WorkDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(c.WorkDir, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(holdingDir, rel)); err != nil {
			return err
		}
		holding.Files = append(holding.Files, rel)
		return nil
	})
	if err != nil {
		holding.Cleanup()
		return nil, fmt.Errorf("failed to collect recordings from %s: %w", c.WorkDir, err)
	}

	if len(holding.Files) == 0 {
		holding.Cleanup()
		return nil, failure.New(failure.EmptyResult, "recording.collect",
			"no recordings produced under %s", c.WorkDir)
	}

	logger.Info("Collected recordings", "count", len(holding.Files), "holding", holdingDir)
	return holding, nil
}

// Publish replaces the destination tree with the holding set. Replacement
// is wholesale, never a merge: a recording published by an earlier run and
// not reproduced by this one does not survive.
func (c *Collector) Publish(holding *Holding) error {
	if err := os.RemoveAll(c.DestDir); err != nil {
		return fmt.Errorf("failed to clear destination %s: %w", c.DestDir, err)
	}
	for _, rel := range holding.Files {
		src := filepath.Join(holding.Dir, rel)
		dst := filepath.Join(c.DestDir, rel)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("failed to publish %s: %w", rel, err)
		}
	}
	logger.Info("Published recordings", "count", len(holding.Files), "dest", c.DestDir)
	return nil
}

// Normalize runs the normalization pass over the destination tree.
// Failures are warnings; normalization is best-effort cosmetic cleanup.
func (c *Collector) Normalize() {
	files, replacements, err := c.normalizer.NormalizeTree(c.DestDir)
	if err != nil {
		logger.Warn("Recording normalization failed", "dir", c.DestDir, "error", err)
		return
	}
	logger.Info("Normalized recordings", "files", files, "replacements", replacements)
}

// CollectAndPublish runs the full collection sequence: collect into a
// holding area, publish to the destination, normalize, and remove the
// holding area unconditionally.
func (c *Collector) CollectAndPublish() error {
	holding, err := c.Collect()
	if err != nil {
		return err
	}
	defer holding.Cleanup()

	if err := c.Publish(holding); err != nil {
		return err
	}
	c.Normalize()
	return nil
}

// Cleanup removes the holding area. Safe to call more than once.
func (h *Holding) Cleanup() {
	if h.Dir == "" {
		return
	}
	if err := os.RemoveAll(h.Dir); err != nil {
		logger.Warn("Could not remove holding area", "dir", h.Dir, "error", err)
	}
}

// copyFile copies src to dst, creating dst's parent directories.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	_, err = io.Copy(out, in)
	return err
}

// countFiles counts regular files under root. A missing root counts as zero.
func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			count++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return count, err
}
