package daemon

import (
	"fmt"

	"github.com/matheus3301/portalchat/internal/api"
	"github.com/matheus3301/portalchat/internal/config"
	"github.com/matheus3301/portalchat/internal/lock"
	"github.com/matheus3301/portalchat/internal/messaging"
	"github.com/matheus3301/portalchat/internal/status"
	"github.com/matheus3301/portalchat/internal/store"
	"go.uber.org/zap"
)

// Repository is the backend selected by [store].driver.
type Repository struct {
	Store   messaging.Store
	Counter api.Counter
	Driver  string
	close   func() error
}

// Close releases the backend.
func (r *Repository) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// provideRepository depends on the profile lock so a second daemon never
// opens the same database.
func provideRepository(p Params, _ *lock.Lock, machine *status.Machine, logger *zap.Logger) (*Repository, error) {
	switch p.Config.Store.Driver {
	case config.DriverMemory:
		logger.Info("store initialized", zap.String("driver", config.DriverMemory))
		mem := store.NewMemory()
		return &Repository{Store: mem, Counter: mem, Driver: config.DriverMemory}, nil
	case config.DriverSQLite, "":
	default:
		return nil, fmt.Errorf("unknown store driver %q", p.Config.Store.Driver)
	}

	dbPath := p.dbPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	_ = machine.Transition(status.Migrating)
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		_ = machine.Transition(status.Error)
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("driver", config.DriverSQLite), zap.String("path", dbPath))
	return &Repository{Store: db, Counter: db, Driver: config.DriverSQLite, close: db.Close}, nil
}
