package items

import (
	"fmt"
	"maps"
	"strings"
)

// Item is one record from the input list.
type Item struct {
	Index        int
	Title        string
	ResourcePath string
	ResolvedPath string
	Attributes   map[string]string
}

// Label returns the display name used in status output.
func (i Item) Label() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return fmt.Sprintf("Item %d", i.Index)
}

// Clone returns a deep copy so per-run path substitution never touches the
// caller's records.
func (i Item) Clone() Item {
	out := i
	if i.Attributes != nil {
		out.Attributes = maps.Clone(i.Attributes)
	}
	return out
}

// CloneAll deep-copies a list of items.
func CloneAll(list []Item) []Item {
	if list == nil {
		return nil
	}
	out := make([]Item, len(list))
	for i, item := range list {
		out[i] = item.Clone()
	}
	return out
}

// ResourcePaths returns the original resource path of every item in order.
func ResourcePaths(list []Item) []string {
	paths := make([]string, 0, len(list))
	for _, item := range list {
		paths = append(paths, item.ResourcePath)
	}
	return paths
}
