package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

func TestAlarmInsert_MarshalsTargets(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := New(db).Alarms

	mock.ExpectQuery(`INSERT INTO alarm_logs`).
		WithArgs(int64(1), "IND1", domain.KindAlarm, []byte(`["OUT1","OUT2"]`), domain.OutcomeSuccess).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), time.Now()))

	rec := &domain.AlarmRecord{
		StationID:  1,
		OriginIMEI: "IND1",
		Kind:       domain.KindAlarm,
		Targets:    []string{"OUT1", "OUT2"},
		Outcome:    domain.OutcomeSuccess,
	}
	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.Equal(t, int64(10), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlarmInsert_NilTargetsBecomeEmptyArray(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := New(db).Alarms

	mock.ExpectQuery(`INSERT INTO alarm_logs`).
		WithArgs(int64(2), "IND1", domain.KindCancel, []byte(`[]`), domain.OutcomeNoTargets).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))

	rec := &domain.AlarmRecord{
		StationID:  2,
		OriginIMEI: "IND1",
		Kind:       domain.KindCancel,
		Outcome:    domain.OutcomeNoTargets,
	}
	require.NoError(t, repo.Insert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlarmList_NewestFirstAndTargetsDecoded(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := New(db).Alarms

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alarm_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	later := time.Now()
	earlier := later.Add(-time.Hour)
	mock.ExpectQuery(`FROM alarm_logs a LEFT JOIN stations s (.+) ORDER BY a.created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "station_id", "station_name", "origin_imei", "kind", "targets", "outcome", "created_at",
		}).
			AddRow(2, 1, "GS001", "IND1", "cancel", []byte(`["OUT1","OUT2"]`), "success", later).
			AddRow(1, 1, "GS001", "IND1", "alarm", []byte(`["OUT1"]`), "success", earlier))

	recs, total, err := repo.List(context.Background(), AlarmFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, recs, 2)
	assert.True(t, !recs[0].CreatedAt.Before(recs[1].CreatedAt))
	assert.Equal(t, []string{"OUT1", "OUT2"}, recs[0].Targets)
	assert.Equal(t, []string{"OUT1"}, recs[1].Targets)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlarmList_StationAndRangeFilters(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := New(db).Alarms

	station := int64(3)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alarm_logs`).
		WithArgs(station, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM alarm_logs a LEFT JOIN stations s`).
		WithArgs(station, from, to, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "station_id", "station_name", "origin_imei", "kind", "targets", "outcome", "created_at",
		}))

	recs, total, err := repo.List(context.Background(), AlarmFilter{
		StationID: &station,
		From:      &from,
		To:        &to,
	}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, recs)
	require.NoError(t, mock.ExpectationsWereMet())
}
