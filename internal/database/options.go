package database

import (
	"gorm.io/gorm"

	"github.com/helixml/pantry/domain/repository"
)

// ApplyOptions adds the filters, ordering and limit of options to db.
func ApplyOptions(db *gorm.DB, options ...repository.Option) *gorm.DB {
	q := repository.Build(options...)
	db = where(db, q)
	for _, o := range q.Orders() {
		if o.Ascending() {
			db = db.Order(o.Column() + " ASC")
		} else {
			db = db.Order(o.Column() + " DESC")
		}
	}
	if n := q.LimitValue(); n > 0 {
		db = db.Limit(n)
	}
	return db
}

// ApplyConditions adds only the filters of options, for counts and deletes.
func ApplyConditions(db *gorm.DB, options ...repository.Option) *gorm.DB {
	return where(db, repository.Build(options...))
}

func where(db *gorm.DB, q repository.Query) *gorm.DB {
	for _, c := range q.Conditions() {
		if c.Operator() == repository.OpRaw {
			db = db.Where(c.Column(), c.Args()...)
			continue
		}
		db = db.Where(c.Column()+" "+string(c.Operator())+" ?", c.Args()...)
	}
	return db
}
