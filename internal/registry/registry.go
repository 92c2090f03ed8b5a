package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownSource is returned when a selection references an identifier outside the catalog.
var ErrUnknownSource = errors.New("unknown source")

// Source is one chain the tool can query.
type Source struct {
	ID   string `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
}

var catalog = []Source{
	{ID: "8453", Name: "Base"},
	{ID: "1135", Name: "Lisk"},
	{ID: "10", Name: "Optimism"},
	{ID: "130", Name: "Unichain"},
}

var defaultIDs = []string{"10", "8453"}

func init() {
	sort.SliceStable(catalog, func(i, j int) bool {
		return catalog[i].Name < catalog[j].Name
	})
}

// Catalog returns every known source sorted by display name.
func Catalog() []Source {
	out := make([]Source, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Source, bool) {
	for _, src := range catalog {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// DefaultSelection returns the selection used when nothing was persisted.
func DefaultSelection() Selection {
	sel, err := NewSelection(defaultIDs)
	if err != nil {
		panic(err)
	}
	return sel
}

// Selection is a duplicate-free subset of the catalog kept in catalog order.
type Selection struct {
	sources []Source
}

// NewSelection validates ids against the catalog. Duplicates and surrounding
// whitespace are ignored; unknown identifiers fail with ErrUnknownSource.
func NewSelection(ids []string) (Selection, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := Lookup(id); !ok {
			return Selection{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
		wanted[id] = struct{}{}
	}

	sources := make([]Source, 0, len(wanted))
	for _, src := range catalog {
		if _, ok := wanted[src.ID]; ok {
			sources = append(sources, src)
		}
	}
	return Selection{sources: sources}, nil
}

// Sources returns the selected sources in display-name order.
func (s Selection) Sources() []Source {
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// IDs returns the selected identifiers in display-name order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		ids = append(ids, src.ID)
	}
	return ids
}

// Names returns the selected display names in order.
func (s Selection) Names() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name)
	}
	return names
}

func (s Selection) Len() int {
	return len(s.sources)
}

func (s Selection) Empty() bool {
	return len(s.sources) == 0
}

func (s Selection) Contains(id string) bool {
	for _, src := range s.sources {
		if src.ID == id {
			return true
		}
	}
	return false
}

// Validate reports the first identifier in ids that is not in the catalog.
func Validate(ids []string) error {
	_, err := NewSelection(ids)
	return err
}
