package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/pantry/domain/repository"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("entity not found")

// EntityMapper converts between a domain value and its row model.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) D
	ToModel(domain D) E
}

// Repository runs repository.Option queries against the table of E and maps
// rows to D. Sessions join a transaction carried by the context.
type Repository[D any, E any] struct {
	db       Database
	mapper   EntityMapper[D, E]
	label    string
	conflict *clause.OnConflict
}

// NewRepository creates a Repository. label names the entity in errors.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{db: db, mapper: mapper, label: label}
}

// WithUpsert returns a copy whose Save updates the listed columns when a row
// with the same key columns already exists.
func (r Repository[D, E]) WithUpsert(key []string, update []string) Repository[D, E] {
	cols := make([]clause.Column, len(key))
	for i, k := range key {
		cols[i] = clause.Column{Name: k}
	}
	r.conflict = &clause.OnConflict{Columns: cols, DoUpdates: clause.AssignmentColumns(update)}
	return r
}

// Save inserts d, or updates it in place when an upsert key is configured.
func (r Repository[D, E]) Save(ctx context.Context, d D) error {
	row := r.mapper.ToModel(d)
	db := r.db.Session(ctx)
	if r.conflict != nil {
		db = db.Clauses(*r.conflict)
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("save %s: %w", r.label, err)
	}
	return nil
}

// Find returns every row matching options.
func (r Repository[D, E]) Find(ctx context.Context, options ...repository.Option) ([]D, error) {
	var rows []E
	if err := ApplyOptions(r.DB(ctx), options...).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}
	out := make([]D, len(rows))
	for i, row := range rows {
		out[i] = r.mapper.ToDomain(row)
	}
	return out, nil
}

// FindOne returns the first row matching options, or ErrNotFound.
func (r Repository[D, E]) FindOne(ctx context.Context, options ...repository.Option) (D, error) {
	var (
		row  E
		zero D
	)
	err := ApplyOptions(r.DB(ctx), options...).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return zero, fmt.Errorf("%w: %s", ErrNotFound, r.label)
	case err != nil:
		return zero, fmt.Errorf("find one %s: %w", r.label, err)
	}
	return r.mapper.ToDomain(row), nil
}

// Count counts matching rows. Limit, offset and ordering are ignored.
func (r Repository[D, E]) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	var n int64
	if err := ApplyConditions(r.DB(ctx), options...).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return n, nil
}

// DeleteBy removes matching rows and reports how many went.
func (r Repository[D, E]) DeleteBy(ctx context.Context, options ...repository.Option) (int64, error) {
	res := ApplyConditions(r.db.Session(ctx), options...).Delete(new(E))
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", r.label, res.Error)
	}
	return res.RowsAffected, nil
}

// DB returns a session scoped to the table of E.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx).Model(new(E))
}
