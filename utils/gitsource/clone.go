// Package gitsource fetches git repositories to be used as image build contexts.
package gitsource

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// Cloner shallow-clones repositories into temporary directories.
type Cloner struct {
	baseDir string
	logger  *logrus.Logger
}

// NewCloner creates a cloner. An empty baseDir uses the system temp directory.
func NewCloner(baseDir string, logger *logrus.Logger) *Cloner {
	return &Cloner{baseDir: baseDir, logger: logger}
}

// Clone fetches url at ref (a branch or tag name, default branch when empty) into a new
// directory and returns its path. The caller removes the directory.
func (c *Cloner) Clone(ctx context.Context, url, ref string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("repository url is required")
	}

	dir, err := os.MkdirTemp(c.baseDir, "deckhand-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	opts := &git.CloneOptions{
		URL:          url,
		SingleBranch: true,
	}
	// The in-process file transport does not serve shallow clones.
	if !isLocal(url) {
		opts.Depth = 1
	}
	if ref != "" {
		opts.ReferenceName = referenceName(ref)
	}

	c.logger.WithFields(logrus.Fields{"url": url, "ref": ref, "dir": dir}).Info("Cloning build source")
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to clone %s: %w", url, err)
	}

	return dir, nil
}

func referenceName(ref string) plumbing.ReferenceName {
	switch {
	case strings.HasPrefix(ref, "refs/"):
		return plumbing.ReferenceName(ref)
	case strings.HasPrefix(ref, "tags/"):
		return plumbing.NewTagReferenceName(strings.TrimPrefix(ref, "tags/"))
	default:
		return plumbing.NewBranchReferenceName(ref)
	}
}

func isLocal(url string) bool {
	return strings.HasPrefix(url, "file://") || strings.HasPrefix(url, "/") || strings.HasPrefix(url, ".")
}
