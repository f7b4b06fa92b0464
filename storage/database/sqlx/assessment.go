package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core/assessment"
)

const systemColumns = `id, scope, scope_id, name, max_score, pass_mark, components, bands, created_at, updated_at`

// components & bands are JSONB: NULL inherits, an empty array overrides
type systemRow struct {
	ID         string       `db:"id"`
	Scope      string       `db:"scope"`
	ScopeID    string       `db:"scope_id"`
	Name       null.String  `db:"name"`
	MaxScore   null.Float64 `db:"max_score"`
	PassMark   null.Float64 `db:"pass_mark"`
	Components null.JSON    `db:"components"`
	Bands      null.JSON    `db:"bands"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func newSystemRow(s assessment.System) (systemRow, error) {
	r := systemRow{
		ID:        s.ID,
		Scope:     s.Scope,
		ScopeID:   s.ScopeID,
		Name:      null.StringFromPtr(s.Name),
		MaxScore:  null.Float64FromPtr(s.MaxScore),
		PassMark:  null.Float64FromPtr(s.PassMark),
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
	if s.Components != nil {
		b, err := json.Marshal(s.Components)
		if err != nil {
			return r, errors.Wrap(err, "marshalling components")
		}
		r.Components = null.JSONFrom(b)
	}
	if s.Bands != nil {
		b, err := json.Marshal(s.Bands)
		if err != nil {
			return r, errors.Wrap(err, "marshalling bands")
		}
		r.Bands = null.JSONFrom(b)
	}
	return r, nil
}

func (r systemRow) system() (assessment.System, error) {
	s := assessment.System{
		ID:        r.ID,
		Scope:     r.Scope,
		ScopeID:   r.ScopeID,
		Name:      r.Name.Ptr(),
		MaxScore:  r.MaxScore.Ptr(),
		PassMark:  r.PassMark.Ptr(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Components.Valid {
		if err := json.Unmarshal(r.Components.JSON, &s.Components); err != nil {
			return s, errors.Wrap(err, "unmarshalling components")
		}
	}
	if r.Bands.Valid {
		if err := json.Unmarshal(r.Bands.JSON, &s.Bands); err != nil {
			return s, errors.Wrap(err, "unmarshalling bands")
		}
	}
	return s, nil
}

// deleteSystem drops the system of a scope about to be deleted.
func deleteSystem(ctx context.Context, exec sqlx.ExecerContext, scope, scopeID string) error {
	_, err := exec.ExecContext(ctx, "DELETE FROM assessment_systems WHERE scope = $1 AND scope_id = $2", scope, scopeID)
	return errors.Wrap(err, "deleting assessment system")
}

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) GetSystem(ctx context.Context, scope, scopeID string) (assessment.System, error) {
	var r systemRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+systemColumns+" FROM assessment_systems WHERE scope = $1 AND scope_id = $2", scope, scopeID)
	if err != nil {
		return assessment.System{}, trapNoRowsErr(err, assessment.ErrNotFound, "finding assessment system")
	}
	return r.system()
}

func (repo *assessmentRepository) SaveSystem(ctx context.Context, s assessment.System) (assessment.System, error) {
	r, err := newSystemRow(s)
	if err != nil {
		return assessment.System{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO assessment_systems (`+systemColumns+`)
		VALUES (:id, :scope, :scope_id, :name, :max_score, :pass_mark, :components, :bands, :created_at, :updated_at)
		ON CONFLICT (scope, scope_id) DO UPDATE SET name = EXCLUDED.name, max_score = EXCLUDED.max_score,
			pass_mark = EXCLUDED.pass_mark, components = EXCLUDED.components, bands = EXCLUDED.bands,
			updated_at = EXCLUDED.updated_at`,
		r)
	if err != nil {
		return assessment.System{}, errors.Wrap(err, "saving assessment system")
	}
	return s, nil
}

func (repo *assessmentRepository) DeleteSystem(ctx context.Context, scope, scopeID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM assessment_systems WHERE scope = $1 AND scope_id = $2", scope, scopeID)
	if err != nil {
		return errors.Wrap(err, "deleting assessment system")
	}
	return expectRows(res, assessment.ErrNotFound)
}
