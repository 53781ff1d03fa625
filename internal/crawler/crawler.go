package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"flowlint/internal/source"
)

// Crawler scans a directory tree for function-node scripts. Every directory
// holding .js files is a group and every .js file in it is a unit.
type Crawler struct {
	root    string
	ignored []string
	only    map[string]bool
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithOnly restricts the crawl to the given files, for example the ones a git
// diff reports as changed. Relative paths are taken relative to the root.
func WithOnly(paths []string) Option {
	return func(c *Crawler) {
		c.only = make(map[string]bool, len(paths))
		for _, p := range paths {
			if !filepath.IsAbs(p) {
				p = filepath.Join(c.root, p)
			}
			c.only[filepath.Clean(p)] = true
		}
	}
}

// NewCrawler creates a new crawler instance rooted at root.
func NewCrawler(root string, opts ...Option) *Crawler {
	c := &Crawler{
		root:    filepath.Clean(root),
		ignored: []string{".git", "vendor", "node_modules", "testdata"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScanProject walks the root directory and streams every unit to onUnit.
// Files that cannot be read are skipped.
func (c *Crawler) ScanProject(ctx context.Context, onUnit func(source.Unit) error) error {
	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != c.root && c.isIgnored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.wants(path) {
			return nil
		}

		unit, err := c.load(path)
		if err != nil {
			return nil
		}
		return onUnit(unit)
	})
}

// Groups lists the directories that contain at least one unit.
func (c *Crawler) Groups(ctx context.Context) ([]source.Group, error) {
	seen := make(map[string]bool)
	var groups []source.Group
	err := c.ScanProject(ctx, func(u source.Unit) error {
		if !seen[u.GroupID] {
			seen[u.GroupID] = true
			groups = append(groups, source.Group{ID: u.GroupID, Name: u.GroupID})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", c.root, err)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// Units returns the units of one directory, in file name order.
func (c *Crawler) Units(ctx context.Context, groupID string) ([]source.Unit, error) {
	dir := filepath.Join(c.root, filepath.FromSlash(groupID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", source.ErrUnknownGroup, groupID)
	}

	var units []source.Unit
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || !c.wants(path) {
			continue
		}
		unit, err := c.load(path)
		if err != nil {
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

func (c *Crawler) isIgnored(name string) bool {
	for _, ign := range c.ignored {
		if name == ign {
			return true
		}
	}
	return false
}

func (c *Crawler) wants(path string) bool {
	if !strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".min.js") {
		return false
	}
	return c.only == nil || c.only[filepath.Clean(path)]
}

func (c *Crawler) load(path string) (source.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return source.Unit{}, err
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return source.Unit{}, err
	}
	rel = filepath.ToSlash(rel)
	group := filepath.ToSlash(filepath.Dir(rel))
	return source.Unit{
		ID:      rel,
		Name:    strings.TrimSuffix(filepath.Base(rel), ".js"),
		GroupID: group,
		Source:  string(data),
		Origin:  path,
	}, nil
}
