// Package sqlgen assembles the CRUD statements used by the repository
// adapters from entity metadata. Statements are built with squirrel
// so that one code path serves both placeholder dialects: Question
// for sqlite and mysql, Dollar for postgres.
//
// Only statement text is produced here; argument binding stays in the
// adapters, which extract values through the EntityMeta collaborator.
package sqlgen

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect selects the placeholder format of the produced statements.
type Dialect int

const (
	// Question produces ? placeholders (sqlite, mysql).
	Question Dialect = iota
	// Dollar produces $1..$N placeholders (postgres).
	Dollar
)

func (d Dialect) format() sq.PlaceholderFormat {
	if d == Dollar {
		return sq.Dollar
	}
	return sq.Question
}

// Table carries the metadata slice of one entity that statement
// assembly needs. Adapters fill it from a repo.EntityMeta.
type Table struct {
	Name          string
	IDColumn      string
	SelectColumns []string
	InsertColumns []string
	UpdateColumns []string
}

// SelectByID builds SELECT <cols> FROM <table> WHERE <id> = <ph>.
func SelectByID(d Dialect, t Table) (string, error) {
	query, _, err := sq.Select(t.SelectColumns...).
		From(t.Name).
		Where(fmt.Sprintf("%s = ?", t.IDColumn)).
		PlaceholderFormat(d.format()).
		ToSql()
	return query, err
}

// SelectByField builds SELECT <cols> FROM <table> WHERE <field> = <ph>.
func SelectByField(d Dialect, t Table, field string) (string, error) {
	query, _, err := sq.Select(t.SelectColumns...).
		From(t.Name).
		Where(fmt.Sprintf("%s = ?", field)).
		PlaceholderFormat(d.format()).
		ToSql()
	return query, err
}

// Insert builds INSERT INTO <table> (<cols>) VALUES (<phs>). When
// returning is non-empty, a RETURNING clause for that column is
// appended (postgres).
func Insert(d Dialect, t Table, returning string) (string, error) {
	vals := make([]any, len(t.InsertColumns))
	b := sq.Insert(t.Name).
		Columns(t.InsertColumns...).
		Values(vals...).
		PlaceholderFormat(d.format())
	if returning != "" {
		b = b.Suffix("RETURNING " + returning)
	}
	query, _, err := b.ToSql()
	return query, err
}

// UpdateByID builds UPDATE <table> SET <col>=<ph>, ... WHERE <id> =
// <ph>. Bind the UpdateColumns values first and the key last.
func UpdateByID(d Dialect, t Table) (string, error) {
	b := sq.Update(t.Name).PlaceholderFormat(d.format())
	for _, col := range t.UpdateColumns {
		b = b.Set(col, sq.Expr("?"))
	}
	query, _, err := b.
		Where(fmt.Sprintf("%s = ?", t.IDColumn)).
		ToSql()
	return query, err
}

// DeleteByID builds DELETE FROM <table> WHERE <id> = <ph>.
func DeleteByID(d Dialect, t Table) (string, error) {
	query, _, err := sq.Delete(t.Name).
		Where(fmt.Sprintf("%s = ?", t.IDColumn)).
		PlaceholderFormat(d.format()).
		ToSql()
	return query, err
}
