package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

type StationRepo struct {
	db *sqlx.DB
}

const stationCols = `id, name, code, address, contact, phone, status, created_at, updated_at`

func (r *StationRepo) GetByID(ctx context.Context, id int64) (*domain.Station, error) {
	var s domain.Station
	err := r.db.GetContext(ctx, &s, `SELECT `+stationCols+` FROM stations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("station %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StationRepo) CodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM stations WHERE code = $1 AND id <> $2`, code, excludeID)
	return n > 0, err
}

func (r *StationRepo) List(ctx context.Context, search string, page, perPage int) ([]domain.Station, int64, error) {
	page, perPage = ClampPaging(page, perPage)
	where := ``
	args := []any{}
	if search != "" {
		where = `WHERE name ILIKE $1 OR code ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stations `+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	q := fmt.Sprintf(`SELECT `+stationCols+` FROM stations %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	out := []domain.Station{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *StationRepo) Create(ctx context.Context, s *domain.Station) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO stations (name, code, address, contact, phone, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		s.Name, s.Code, s.Address, s.Contact, s.Phone, s.Status,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *StationRepo) Update(ctx context.Context, s *domain.Station) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stations SET name = $1, code = $2, address = $3, contact = $4, phone = $5,
		        status = $6, updated_at = now()
		 WHERE id = $7`,
		s.Name, s.Code, s.Address, s.Contact, s.Phone, s.Status, s.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("station %d: %w", s.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a station atomically, refusing while any device still
// references it. The bound-device check and the delete run in one
// transaction so a concurrent bind observes either the station or its
// absence, never a dangling reference. Alarm history also references the
// station; a foreign-key violation from the delete surfaces as a conflict,
// not a server fault.
func (r *StationRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bound int
	if err := tx.GetContext(ctx, &bound,
		`SELECT COUNT(*) FROM devices WHERE station_id = $1`, id); err != nil {
		return err
	}
	if bound > 0 {
		return fmt.Errorf("station %d has %d bound devices: %w", id, bound, domain.ErrConflict)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM stations WHERE id = $1`, id)
	if isPgErr(err, "23503") {
		return fmt.Errorf("station %d is referenced by alarm history: %w", id, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("station %d: %w", id, domain.ErrNotFound)
	}
	return tx.Commit()
}

func (r *StationRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM stations`)
	return n, err
}
