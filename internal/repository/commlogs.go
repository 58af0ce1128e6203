package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

type CommLogRepo struct {
	db *sqlx.DB
}

func (r *CommLogRepo) Insert(ctx context.Context, l *domain.CommLog) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO comm_logs (direction, source_role, source_imei, target_role, target_imei, topic, payload, station_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		l.Direction, l.SourceRole, l.SourceIMEI, l.TargetRole, l.TargetIMEI, l.Topic, l.Payload, l.StationID,
	).Scan(&l.ID, &l.CreatedAt)
}

type CommLogFilter struct {
	Direction  domain.Direction
	SourceRole domain.DeviceRole
	SourceIMEI string
	StationID  *int64
}

func (r *CommLogRepo) List(ctx context.Context, f CommLogFilter, page, perPage int) ([]domain.CommLog, int64, error) {
	page, perPage = ClampPaging(page, perPage)
	where := `WHERE 1=1`
	args := []any{}
	if f.Direction == domain.DirectionReceive || f.Direction == domain.DirectionForward {
		args = append(args, f.Direction)
		where += fmt.Sprintf(` AND direction = $%d`, len(args))
	}
	if f.SourceRole.Valid() {
		args = append(args, f.SourceRole)
		where += fmt.Sprintf(` AND source_role = $%d`, len(args))
	}
	if f.SourceIMEI != "" {
		args = append(args, "%"+f.SourceIMEI+"%")
		where += fmt.Sprintf(` AND source_imei ILIKE $%d`, len(args))
	}
	if f.StationID != nil {
		args = append(args, *f.StationID)
		where += fmt.Sprintf(` AND station_id = $%d`, len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM comm_logs `+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	q := fmt.Sprintf(
		`SELECT id, direction, source_role, source_imei, target_role, target_imei, topic, payload, station_id, created_at
		 FROM comm_logs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	out := []domain.CommLog{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
