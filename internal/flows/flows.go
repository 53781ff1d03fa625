// Package flows reads function-node code out of a Node-RED flows file.
package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"flowlint/internal/source"
)

// GlobalGroup collects function nodes that belong to no tab or subflow.
const GlobalGroup = "global"

type node struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Z          string `json:"z"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Func       string `json:"func"`
	Initialize string `json:"initialize"`
	Finalize   string `json:"finalize"`
	Disabled   bool   `json:"d"`
}

// Flows is a parsed flows file.
type Flows struct {
	Groups []source.Group
	units  map[string][]source.Unit
}

// Units returns the units of group id.
func (f *Flows) Units(id string) ([]source.Unit, bool) {
	u, ok := f.units[id]
	return u, ok
}

// Parse decodes a flows file. Both the plain node array and the
// {"flows": [...], "rev": "..."} form are accepted. With lifecycle set, a
// function node's initialize and finalize code become units of their own.
func Parse(data []byte, origin string, lifecycle bool) (*Flows, error) {
	var nodes []node
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Flows []node `json:"flows"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode flows: %w", err)
		}
		nodes = wrapped.Flows
	} else if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}

	f := &Flows{units: make(map[string][]source.Unit)}
	known := make(map[string]bool)
	for _, n := range nodes {
		if n.Type != "tab" && n.Type != "subflow" {
			continue
		}
		name := n.Label
		if name == "" {
			name = n.Name
		}
		if name == "" {
			name = n.Type + " " + n.ID
		}
		known[n.ID] = true
		f.Groups = append(f.Groups, source.Group{ID: n.ID, Name: name})
		f.units[n.ID] = nil
	}

	for _, n := range nodes {
		if n.Type != "function" || n.Disabled {
			continue
		}
		group := n.Z
		if !known[group] {
			group = GlobalGroup
		}
		name := n.Name
		if name == "" {
			name = "function " + n.ID
		}
		at := origin + "#" + n.ID
		f.add(source.Unit{ID: n.ID, Name: name, GroupID: group, Source: n.Func, Origin: at})
		if !lifecycle {
			continue
		}
		if strings.TrimSpace(n.Initialize) != "" {
			f.add(source.Unit{ID: n.ID + ":initialize", Name: name + " (setup)", GroupID: group, Source: n.Initialize, Origin: at})
		}
		if strings.TrimSpace(n.Finalize) != "" {
			f.add(source.Unit{ID: n.ID + ":finalize", Name: name + " (close)", GroupID: group, Source: n.Finalize, Origin: at})
		}
	}
	if _, ok := f.units[GlobalGroup]; ok && !known[GlobalGroup] {
		f.Groups = append(f.Groups, source.Group{ID: GlobalGroup, Name: GlobalGroup})
	}
	return f, nil
}

func (f *Flows) add(u source.Unit) {
	f.units[u.GroupID] = append(f.units[u.GroupID], u)
}

// FileProvider serves groups and units from a flows file on disk. Groups
// rereads the file so a long-running scanner sees edits.
type FileProvider struct {
	path      string
	lifecycle bool

	mu     sync.RWMutex
	loaded *Flows
}

// NewFileProvider returns a provider for the flows file at path.
func NewFileProvider(path string, lifecycle bool) *FileProvider {
	return &FileProvider{path: path, lifecycle: lifecycle}
}

// Load reads and parses the file.
func (p *FileProvider) Load() (*Flows, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read flows: %w", err)
	}
	f, err := Parse(data, p.path, p.lifecycle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.path, err)
	}
	p.mu.Lock()
	p.loaded = f
	p.mu.Unlock()
	return f, nil
}

func (p *FileProvider) Groups(ctx context.Context) ([]source.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := p.Load()
	if err != nil {
		return nil, err
	}
	return f.Groups, nil
}

func (p *FileProvider) Units(ctx context.Context, groupID string) ([]source.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	f := p.loaded
	p.mu.RUnlock()
	if f == nil {
		var err error
		if f, err = p.Load(); err != nil {
			return nil, err
		}
	}
	units, ok := f.Units(groupID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrUnknownGroup, groupID)
	}
	return units, nil
}
