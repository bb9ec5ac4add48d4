package core

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

// ReferenceKind names one of the three reference collections.
type ReferenceKind string

const (
	KindCompany    ReferenceKind = "company"
	KindDepartment ReferenceKind = "department"
	KindPosition   ReferenceKind = "position"
)

// ReferenceEntity is a company, department or position known to the backend.
type ReferenceEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ReferenceSet is a read-only, case-insensitive index over one collection.
type ReferenceSet struct {
	Kind     ReferenceKind
	Entities []ReferenceEntity
	index    map[string]ReferenceEntity
}

// referenceKey folds a name for case-insensitive matching.
// cases.Caser is not safe for concurrent use, so each call gets its own.
func referenceKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// NewReferenceSet builds the lookup index. When two entities fold to the
// same key the first one wins.
func NewReferenceSet(kind ReferenceKind, entities []ReferenceEntity) ReferenceSet {
	idx := make(map[string]ReferenceEntity, len(entities))
	for _, e := range entities {
		key := referenceKey(e.Name)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = e
		}
	}
	return ReferenceSet{Kind: kind, Entities: entities, index: idx}
}

// Lookup finds an entity by trimmed, case-folded exact name.
func (s ReferenceSet) Lookup(name string) (ReferenceEntity, bool) {
	key := referenceKey(name)
	if key == "" || s.index == nil {
		return ReferenceEntity{}, false
	}
	e, ok := s.index[key]
	return e, ok
}

// Names returns the entity names in the order the backend returned them.
func (s ReferenceSet) Names() []string {
	names := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entities in the set.
func (s ReferenceSet) Len() int {
	return len(s.Entities)
}

// References bundles the three collections loaded for one session.
type References struct {
	Companies   ReferenceSet
	Departments ReferenceSet
	Positions   ReferenceSet
}

// Empty reports whether no reference data is available at all.
func (r References) Empty() bool {
	return r.Companies.Len() == 0 && r.Departments.Len() == 0 && r.Positions.Len() == 0
}

// NewReferences builds References from plain entity slices.
func NewReferences(companies, departments, positions []ReferenceEntity) References {
	return References{
		Companies:   NewReferenceSet(KindCompany, companies),
		Departments: NewReferenceSet(KindDepartment, departments),
		Positions:   NewReferenceSet(KindPosition, positions),
	}
}

// LoadReferences fetches the three collections concurrently.
// Any failure aborts the load; a partial set is never returned.
func LoadReferences(ctx context.Context, lookup ReferenceLookup) (References, error) {
	var companies, departments, positions []ReferenceEntity

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if companies, err = lookup.Companies(gctx); err != nil {
			return &ReferenceLookupError{Kind: KindCompany, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if departments, err = lookup.Departments(gctx); err != nil {
			return &ReferenceLookupError{Kind: KindDepartment, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if positions, err = lookup.Positions(gctx); err != nil {
			return &ReferenceLookupError{Kind: KindPosition, Err: err}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return References{}, err
	}

	return NewReferences(companies, departments, positions), nil
}
