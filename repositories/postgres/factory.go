package postgres

import (
	"github.com/storyverse/ai-gateway/config"
	"github.com/storyverse/ai-gateway/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory owns the pool and builds repositories over it
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory connects to the database
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Stories:        NewStoryRepository(f.db, f.logger),
		Illustrations:  NewIllustrationRepository(f.db, f.logger),
		GenerationLogs: NewGenerationLogRepository(f.db, f.logger),
	}
}

// TransactionManager returns a transaction manager over the pool
func (f *RepositoryFactory) TransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// DB returns the database connection
func (f *RepositoryFactory) DB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}

// NewRepositoryFactoryFromDB builds a factory over an existing pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}
