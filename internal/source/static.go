package source

import (
	"context"
	"fmt"
)

// Static serves a fixed set of units. Groups are listed in first-seen order.
type Static struct {
	groups []Group
	units  map[string][]Unit
}

// NewStatic groups units by GroupID. Group names default to the id; use
// Name to change them.
func NewStatic(units ...Unit) *Static {
	s := &Static{units: make(map[string][]Unit)}
	for _, u := range units {
		if _, ok := s.units[u.GroupID]; !ok {
			s.groups = append(s.groups, Group{ID: u.GroupID, Name: u.GroupID})
		}
		s.units[u.GroupID] = append(s.units[u.GroupID], u)
	}
	return s
}

// Name sets the display name of a group.
func (s *Static) Name(groupID, name string) *Static {
	for i := range s.groups {
		if s.groups[i].ID == groupID {
			s.groups[i].Name = name
		}
	}
	return s
}

func (s *Static) Groups(ctx context.Context) ([]Group, error) {
	return s.groups, ctx.Err()
}

func (s *Static) Units(ctx context.Context, groupID string) ([]Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	units, ok := s.units[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}
	return units, nil
}
