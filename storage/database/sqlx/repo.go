package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/darasa/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var errReferenced = core.NewConflictError("this record is still referenced by other records")

func trapNoRowsErr(err error, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

// translateErr turns constraint violations into the domain errors registered for their constraint names.
func translateErr(err error, constraints map[string]error) error {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		return err
	}
	if domainErr, ok := constraints[pqErr.Constraint]; ok {
		return domainErr
	}
	if pqErr.Code == foreignKeyViolation {
		return errReferenced
	}
	return err
}

// orderBy builds an ORDER BY clause out of the orderings allowed by fields ({api name: column}).
func orderBy(ordering []core.DBOrdering, fields map[string]string, dflt string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := fields[ord.Field]
		if !ok {
			continue
		}
		ord.Field = strmangle.IdentQuote('"', '"', col)
		clauses = append(clauses, ord.String())
	}
	if len(clauses) == 0 {
		return " ORDER BY " + dflt
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// where accumulates the conditions of a query; placeholders are `?` until rebound.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// addIn adds a `col IN (?)` condition, expanded by sqlx.In.
func (w *where) addIn(col string, values []string) {
	w.add(col+" IN (?)", values)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// build expands IN clauses & rebinds the placeholders for db.
func (w *where) build(db *sqlx.DB, q string) (string, []interface{}, error) {
	q, args, err := sqlx.In(q, w.args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "building query")
	}
	return db.Rebind(q), args, nil
}

func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// deleteByID deletes the row of table with id, returning notFound when there is none.
func deleteByID(ctx context.Context, db *sqlx.DB, table, id string, notFound error, constraints map[string]error) error {
	q := "DELETE FROM " + strmangle.IdentQuote('"', '"', table) + " WHERE id = $1"
	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return translateErr(err, constraints)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
