// Package source defines the code units the scanner analyzes and the
// providers that discover them.
package source

import (
	"context"
	"errors"
)

// ErrUnknownGroup is returned by providers asked for a group they do not have.
var ErrUnknownGroup = errors.New("unknown group")

// Group is a set of units analyzed and scored together, such as one flow tab.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Unit is one analyzable block of function-node code.
type Unit struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
	Source  string `json:"source"`
	// Origin locates the unit, a file path or flow file plus node id.
	Origin string `json:"origin,omitempty"`
}

// Provider yields groups and their units. Implementations must be safe for
// concurrent Units calls.
type Provider interface {
	Groups(ctx context.Context) ([]Group, error)
	Units(ctx context.Context, groupID string) ([]Unit, error)
}
