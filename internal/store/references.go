package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/collabimport/internal/core"
)

// ReferenceRepository reads the company, department and position catalogs.
// It implements core.ReferenceLookup.
type ReferenceRepository struct {
	db DBTX
}

// NewReferenceRepository creates a repository over db.
func NewReferenceRepository(db DBTX) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

var _ core.ReferenceLookup = (*ReferenceRepository)(nil)

// referenceTables maps each kind to its table. Names are constants, never user input.
var referenceTables = map[core.ReferenceKind]string{
	core.KindCompany:    "companies",
	core.KindDepartment: "departments",
	core.KindPosition:   "positions",
}

// Companies returns every active company ordered by name.
func (r *ReferenceRepository) Companies(ctx context.Context) ([]core.ReferenceEntity, error) {
	return r.list(ctx, core.KindCompany)
}

// Departments returns every active department ordered by name.
func (r *ReferenceRepository) Departments(ctx context.Context) ([]core.ReferenceEntity, error) {
	return r.list(ctx, core.KindDepartment)
}

// Positions returns every active position ordered by name.
func (r *ReferenceRepository) Positions(ctx context.Context) ([]core.ReferenceEntity, error) {
	return r.list(ctx, core.KindPosition)
}

func (r *ReferenceRepository) list(ctx context.Context, kind core.ReferenceKind) ([]core.ReferenceEntity, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", kind)
	}

	rows, err := r.db.Query(ctx, "SELECT id, name FROM "+table+" WHERE active ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	entities := make([]core.ReferenceEntity, 0)
	for rows.Next() {
		var e core.ReferenceEntity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	return entities, nil
}
