package service

import (
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/snsy/gas-station-monitor/internal/repository"
)

type Services struct {
	Repos     *repository.Repos
	Directory *DirectoryService
	Auth      *AuthService
}

func New(db *sqlx.DB, log zerolog.Logger) *Services {
	repos := repository.New(db)
	return &Services{
		Repos:     repos,
		Directory: &DirectoryService{repos: repos, log: log},
		Auth:      &AuthService{users: repos.Users, log: log},
	}
}
