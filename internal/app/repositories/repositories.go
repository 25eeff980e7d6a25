package repositories

import (
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository     *UserRepository
	TokenRepository    *TokenRepository
	SnapshotRepository *SnapshotRepository
}

// NewRepositories initializes all repositories
func NewRepositories(database *db.DB) *Repositories {
	return &Repositories{
		UserRepository:     NewUserRepository(database),
		TokenRepository:    NewTokenRepository(database),
		SnapshotRepository: NewSnapshotRepository(database),
	}
}
