// Package suite obtains the external integration-test suite at the revision
// matching the built distribution and executes it against the running stack.
package suite

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
	"stackharness/internal/runner"
)

// Checkout manages the local clone of the external test suite.
type Checkout struct {
	RepoURL string
	Dir     string
	Runner  runner.CommandRunner
}

// NewCheckout creates a Checkout for the given repository and local path.
func NewCheckout(repoURL, dir string, r runner.CommandRunner) *Checkout {
	return &Checkout{RepoURL: repoURL, Dir: dir, Runner: r}
}

// Sync clones the suite repository when no local checkout exists, always
// fetches the latest refs, and checks out the requested revision. A failed
// checkout reports the available tags so a bad version pin is obvious.
func (c *Checkout) Sync(ctx context.Context, rev string) error {
	if _, err := os.Stat(c.Dir); os.IsNotExist(err) {
		logger.Info("Cloning test suite", "repo", c.RepoURL, "dir", c.Dir)
		if output, err := c.Runner.Run(ctx, "", "git", "clone", c.RepoURL, c.Dir); err != nil {
			return failure.Wrap(failure.CommandFailed, "suite.clone",
				fmt.Errorf("cloning %s: %w (output: %s)", c.RepoURL, err, strings.TrimSpace(output)))
		}
	}

	if output, err := c.Runner.Run(ctx, c.Dir, "git", "fetch", "--all", "--tags"); err != nil {
		return failure.Wrap(failure.CommandFailed, "suite.fetch",
			fmt.Errorf("fetching refs: %w (output: %s)", err, strings.TrimSpace(output)))
	}

	logger.Info("Checking out suite revision", "rev", rev)
	if output, err := c.Runner.Run(ctx, c.Dir, "git", "checkout", rev); err != nil {
		tags, _ := c.Runner.Run(ctx, c.Dir, "git", "tag", "--list")
		return failure.Wrap(failure.CommandFailed, "suite.checkout",
			fmt.Errorf("checking out %q: %w (output: %s); available tags:\n%s",
				rev, err, strings.TrimSpace(output), strings.TrimSpace(tags)))
	}

	return nil
}
