package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

type DeviceRepo struct {
	db *sqlx.DB
}

const deviceCols = `d.id, d.imei, d.role, d.name, d.station_id, d.last_seen, d.vbat_mv, d.created_at, d.updated_at`

func (r *DeviceRepo) GetByIMEI(ctx context.Context, imei string) (*domain.Device, error) {
	var d domain.Device
	err := r.db.GetContext(ctx, &d,
		`SELECT `+deviceCols+`, s.name AS station_name
		 FROM devices d LEFT JOIN stations s ON s.id = d.station_id
		 WHERE d.imei = $1`, imei)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", imei, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepo) Create(ctx context.Context, d *domain.Device) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO devices (imei, role, name, station_id, last_seen, vbat_mv)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		d.IMEI, d.Role, d.Name, d.StationID, d.LastSeen, d.BatteryMV,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

type DeviceFilter struct {
	Role      domain.DeviceRole
	StationID *int64
	Search    string
	// Online filters on last_seen against OnlineCutoff. Filtering happens in
	// SQL so total and pages count the filtered set, not the raw table.
	Online       *bool
	OnlineCutoff time.Time
}

func (r *DeviceRepo) List(ctx context.Context, f DeviceFilter, page, perPage int) ([]domain.Device, int64, error) {
	page, perPage = ClampPaging(page, perPage)
	where := `WHERE 1=1`
	args := []any{}
	if f.Role.Valid() {
		args = append(args, f.Role)
		where += fmt.Sprintf(` AND d.role = $%d`, len(args))
	}
	if f.StationID != nil {
		args = append(args, *f.StationID)
		where += fmt.Sprintf(` AND d.station_id = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND (d.imei ILIKE $%d OR s.name ILIKE $%d)`, len(args), len(args))
	}
	if f.Online != nil {
		args = append(args, f.OnlineCutoff)
		if *f.Online {
			where += fmt.Sprintf(` AND d.last_seen > $%d`, len(args))
		} else {
			where += fmt.Sprintf(` AND (d.last_seen IS NULL OR d.last_seen <= $%d)`, len(args))
		}
	}

	var total int64
	countQ := `SELECT COUNT(*) FROM devices d LEFT JOIN stations s ON s.id = d.station_id ` + where
	if err := r.db.GetContext(ctx, &total, countQ, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	q := fmt.Sprintf(`SELECT `+deviceCols+`, s.name AS station_name
		 FROM devices d LEFT JOIN stations s ON s.id = d.station_id
		 %s ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	out := []domain.Device{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByStationRole returns the relay peer set: every device of the given
// role bound to the station.
func (r *DeviceRepo) ListByStationRole(ctx context.Context, stationID int64, role domain.DeviceRole) ([]domain.Device, error) {
	out := []domain.Device{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+deviceCols+`, NULL AS station_name
		 FROM devices d WHERE d.station_id = $1 AND d.role = $2`, stationID, role)
	return out, err
}

// Touch stamps last_seen and, when the payload carried one, the battery
// voltage. Missing rows are ignored; the registrar creates before it
// touches.
func (r *DeviceRepo) Touch(ctx context.Context, imei string, at time.Time, vbatMV *float64) error {
	if vbatMV != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE devices SET last_seen = $1, vbat_mv = $2, updated_at = now() WHERE imei = $3`,
			at, *vbatMV, imei)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = $1, updated_at = now() WHERE imei = $2`, at, imei)
	return err
}

// CorrectRole rewrites the recorded role after a device reported on the
// other role's channel. The binding is cleared in the same statement: a
// device may not stay bound under a role that contradicts its channel.
func (r *DeviceRepo) CorrectRole(ctx context.Context, imei string, role domain.DeviceRole) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET role = $1, station_id = NULL, updated_at = now() WHERE imei = $2`,
		role, imei)
	return err
}

// Bind attaches a device to a station. The parent station row is locked for
// the whole transaction: the indoor-slot check reads a possibly empty set,
// and locking no rows serializes nothing, so concurrent binds must queue on
// a row that always exists.
func (r *DeviceRepo) Bind(ctx context.Context, imei string, stationID int64) (*domain.Device, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d domain.Device
	err = tx.GetContext(ctx, &d,
		`SELECT `+deviceCols+`, NULL AS station_name FROM devices d WHERE d.imei = $1 FOR UPDATE`, imei)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", imei, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var lockedStation int64
	err = tx.GetContext(ctx, &lockedStation,
		`SELECT id FROM stations WHERE id = $1 FOR UPDATE`, stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("station %d: %w", stationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if d.StationID != nil && *d.StationID != stationID {
		return nil, fmt.Errorf("device %s already bound to station %d: %w", imei, *d.StationID, domain.ErrConflict)
	}

	if d.Role == domain.RoleIndoor {
		var indoorIMEI string
		err = tx.GetContext(ctx, &indoorIMEI,
			`SELECT imei FROM devices WHERE station_id = $1 AND role = 'indoor'`, stationID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil && indoorIMEI != imei {
			return nil, fmt.Errorf("station %d already has indoor device %s: %w",
				stationID, indoorIMEI, domain.ErrConflict)
		}
	}

	// The partial unique index on (station_id) WHERE role = 'indoor' backs
	// up the in-transaction check.
	_, err = tx.ExecContext(ctx,
		`UPDATE devices SET station_id = $1, updated_at = now() WHERE imei = $2`,
		stationID, imei)
	if isPgErr(err, "23505") {
		return nil, fmt.Errorf("station %d already has an indoor device: %w", stationID, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	d.StationID = &stationID
	return &d, nil
}

// Unbind clears the binding. Idempotent: unbinding an unbound device is a
// no-op, unknown IMEIs are still a 404.
func (r *DeviceRepo) Unbind(ctx context.Context, imei string) (*domain.Device, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET station_id = NULL, updated_at = now() WHERE imei = $1`, imei)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("device %s: %w", imei, domain.ErrNotFound)
	}
	return r.GetByIMEI(ctx, imei)
}

func (r *DeviceRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM devices`)
	return n, err
}

func (r *DeviceRepo) CountOnline(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM devices WHERE last_seen > $1`, since)
	return n, err
}
