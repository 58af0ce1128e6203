package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

type Repos struct {
	Stations *StationRepo
	Devices  *DeviceRepo
	Alarms   *AlarmRepo
	CommLogs *CommLogRepo
	Users    *UserRepo
}

func New(db *sqlx.DB) *Repos {
	return &Repos{
		Stations: &StationRepo{db: db},
		Devices:  &DeviceRepo{db: db},
		Alarms:   &AlarmRepo{db: db},
		CommLogs: &CommLogRepo{db: db},
		Users:    &UserRepo{db: db},
	}
}

// Page is the uniform pagination shape returned by list queries.
type Page struct {
	Items   any   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int64 `json:"pages"`
}

func NewPage(items any, total int64, page, perPage int) Page {
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	return Page{Items: items, Total: total, Page: page, PerPage: perPage, Pages: pages}
}

// isPgErr reports whether err is a Postgres error with the given SQLSTATE
// code.
func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func ClampPaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 10
	}
	return page, perPage
}
