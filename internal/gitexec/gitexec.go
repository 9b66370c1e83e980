// Package gitexec is the subprocess boundary onto the git CLI contract that
// the index maintenance engine and the commit scope are built on: init, add,
// rm -f, commit, reset, status --porcelain, rev-parse HEAD, diff
// --name-status, and hash-object -t tree /dev/null, plus rev-parse
// --git-dir (IsRepo) and log (Log). It never shells out to anything else,
// and it never interprets git output beyond what those commands' own
// stable formats require.
package gitexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// Client runs git subcommands against one working tree.
type Client struct {
	dir string
	bin string
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the git executable name/path (default "git").
func WithBinary(bin string) Option {
	return func(c *Client) { c.bin = bin }
}

// New returns a Client rooted at dir.
func New(dir string, opts ...Option) *Client {
	c := &Client{dir: dir, bin: "git"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the working tree root this client operates on.
func (c *Client) Dir() string { return c.dir }

// run executes one git invocation, retrying a bounded number of times if
// git reports index-lock contention (two engine-triggered commands racing
// within the same process tree), and wrapping any other failure with the
// command line and combined output, matching the teacher's own
// fmt.Errorf("...: %w\nOutput: %s", err, output) convention.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	var output []byte

	operation := func() error {
		cmd := exec.CommandContext(ctx, c.bin, args...)
		cmd.Dir = c.dir
		out, err := cmd.CombinedOutput()
		output = out
		if err == nil {
			return nil
		}
		if strings.Contains(string(out), "index.lock") {
			return err // retryable
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	b2 := backoff.WithContext(b, ctx)
	if err := backoff.Retry(operation, b2); err != nil {
		return "", fmt.Errorf("git %s: %w\noutput: %s", strings.Join(args, " "), err, output)
	}
	return string(output), nil
}

// Init runs `git init`.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.run(ctx, "init")
	return err
}

// IsRepo reports whether dir is (already) inside a git working tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	_, err := c.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// Add stages paths.
func (c *Client) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := c.run(ctx, append([]string{"add"}, paths...)...)
	return err
}

// RemoveForce runs `git rm -f` on paths, removing them from both the index
// and the working tree.
func (c *Client) RemoveForce(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := c.run(ctx, append([]string{"rm", "-f"}, paths...)...)
	return err
}

// Commit commits the given paths (or everything already staged, if none are
// given) with message.
func (c *Client) Commit(ctx context.Context, message string, paths ...string) error {
	args := []string{"commit", "-m", message}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := c.run(ctx, args...)
	return err
}

// Reset unstages paths (`git reset -- <paths>`), leaving the working tree
// untouched.
func (c *Client) Reset(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"reset", "--"}, paths...)
	_, err := c.run(ctx, args...)
	return err
}

// RevParseHEAD returns the commit hash HEAD currently points at.
func (c *Client) RevParseHEAD(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// EmptyTreeHash returns the hash of the canonical empty tree, used as the
// "before" side of a diff when an index has never been updated.
func (c *Client) EmptyTreeHash(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "hash-object", "-t", "tree", "/dev/null")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Change is one line of `git diff --name-status` output.
type Change struct {
	// Status is the raw status code: A, M, D, C, or R<score>.
	Status string
	// Path is the current (post-change) path.
	Path string
	// OldPath is set for copies and renames (C/R statuses).
	OldPath string
}

// IsRename reports whether Status is any rename code (R100, R87, ...).
func (c Change) IsRename() bool { return strings.HasPrefix(c.Status, "R") }

// IsPureRename reports whether Status is exactly R100 — content unchanged,
// only the path moved.
func (c Change) IsPureRename() bool { return c.Status == "R100" }

// DiffNameStatus returns the parsed `git diff --name-status from to` lines.
func (c *Client) DiffNameStatus(ctx context.Context, from, to string) ([]Change, error) {
	out, err := c.run(ctx, "diff", "--name-status", from, to)
	if err != nil {
		return nil, err
	}
	var changes []Change
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		switch {
		case strings.HasPrefix(status, "R"), strings.HasPrefix(status, "C"):
			if len(fields) < 3 {
				continue
			}
			changes = append(changes, Change{Status: status, OldPath: fields[1], Path: fields[2]})
		default:
			changes = append(changes, Change{Status: status, Path: fields[1]})
		}
	}
	return changes, nil
}

// LogEntry is one entry of `git log` output, parsed from the default
// pretty-format's "commit"/"Author:"/"Date:" header lines.
type LogEntry struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Date        string
}

// Log returns the commit history touching paths (or the whole repository,
// if none are given), most recent first — the history-browsing surface the
// original implementation exposed alongside its document store.
func (c *Client) Log(ctx context.Context, paths ...string) ([]LogEntry, error) {
	args := append([]string{"log"}, paths...)
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var entries []LogEntry
	var cur *LogEntry
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "commit "):
			if cur != nil {
				entries = append(entries, *cur)
			}
			cur = &LogEntry{Hash: strings.TrimSpace(strings.TrimPrefix(trimmed, "commit"))}
		case strings.HasPrefix(trimmed, "Author:") && cur != nil:
			parseAuthor(cur, strings.TrimSpace(strings.TrimPrefix(trimmed, "Author:")))
		case strings.HasPrefix(trimmed, "Date:") && cur != nil:
			cur.Date = strings.TrimSpace(strings.TrimPrefix(trimmed, "Date:"))
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries, nil
}

// parseAuthor splits a "Name <email>" author line into its two fields.
func parseAuthor(e *LogEntry, s string) {
	open := strings.LastIndex(s, "<")
	shut := strings.LastIndex(s, ">")
	if open < 0 || shut < open {
		e.AuthorName = s
		return
	}
	e.AuthorName = strings.TrimSpace(s[:open])
	e.AuthorEmail = s[open+1 : shut]
}

// StagedAdded returns the paths `git status --porcelain` reports as newly
// added in the index (status code 'A' in the first column).
func (c *Client) StagedAdded(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var added []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		if line[0] == 'A' {
			added = append(added, strings.TrimSpace(line[3:]))
		}
	}
	return added, nil
}
