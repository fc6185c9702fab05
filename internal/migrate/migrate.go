// Package migrate runs the embedded SQL schema migrations at boot, the Go
// equivalent of the original's diesel_migrations::embed_migrations! +
// run_pending_migrations (original_source/src/db.rs).
package migrate

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/pkg/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run applies every pending migration against databaseURL. A fatal
// migration failure aborts the process per spec.md §7 "Fatal boot".
func Run(databaseURL string, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return utils.Wrap(err, "load embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return utils.Wrap(err, "init migration runner")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.WithError(srcErr).Warn("closing migration source")
		}
		if dbErr != nil {
			log.WithError(dbErr).Warn("closing migration database handle")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return utils.Wrap(err, "apply migrations")
	}
	log.Info("migrations up to date")
	return nil
}
