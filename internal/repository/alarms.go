package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

type AlarmRepo struct {
	db *sqlx.DB
}

// alarmRow carries the raw JSONB targets column alongside the domain fields.
type alarmRow struct {
	domain.AlarmRecord
	TargetsRaw []byte `db:"targets"`
}

func (r *AlarmRepo) Insert(ctx context.Context, rec *domain.AlarmRecord) error {
	targets := rec.Targets
	if targets == nil {
		targets = []string{}
	}
	raw, err := json.Marshal(targets)
	if err != nil {
		return err
	}
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO alarm_logs (station_id, origin_imei, kind, targets, outcome)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		rec.StationID, rec.OriginIMEI, rec.Kind, raw, rec.Outcome,
	).Scan(&rec.ID, &rec.CreatedAt)
}

type AlarmFilter struct {
	StationID *int64
	Kind      domain.EventKind
	From      *time.Time
	To        *time.Time
	Search    string
}

// List returns ledger rows newest-first. The ledger has no update or delete.
func (r *AlarmRepo) List(ctx context.Context, f AlarmFilter, page, perPage int) ([]domain.AlarmRecord, int64, error) {
	page, perPage = ClampPaging(page, perPage)
	where := `WHERE 1=1`
	args := []any{}
	if f.StationID != nil {
		args = append(args, *f.StationID)
		where += fmt.Sprintf(` AND a.station_id = $%d`, len(args))
	}
	if f.Kind == domain.KindAlarm || f.Kind == domain.KindCancel {
		args = append(args, f.Kind)
		where += fmt.Sprintf(` AND a.kind = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(` AND a.created_at >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(` AND a.created_at <= $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND (s.name ILIKE $%d OR a.origin_imei ILIKE $%d)`, len(args), len(args))
	}

	var total int64
	countQ := `SELECT COUNT(*) FROM alarm_logs a LEFT JOIN stations s ON s.id = a.station_id ` + where
	if err := r.db.GetContext(ctx, &total, countQ, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	q := fmt.Sprintf(
		`SELECT a.id, a.station_id, s.name AS station_name, a.origin_imei, a.kind, a.targets, a.outcome, a.created_at
		 FROM alarm_logs a LEFT JOIN stations s ON s.id = a.station_id
		 %s ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows := []alarmRow{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, err
	}
	out := make([]domain.AlarmRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.AlarmRecord
		rec.Targets = []string{}
		if len(row.TargetsRaw) > 0 {
			if err := json.Unmarshal(row.TargetsRaw, &rec.Targets); err != nil {
				return nil, 0, fmt.Errorf("alarm %d targets: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, total, nil
}

// Recent returns the newest n ledger rows for the stats endpoint.
func (r *AlarmRepo) Recent(ctx context.Context, n int) ([]domain.AlarmRecord, error) {
	recs, _, err := r.List(ctx, AlarmFilter{}, 1, n)
	return recs, err
}
