package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations
var migrationsFS embed.FS

// Open establishes a new connection to the configured database.
func Open(driver, dataSourceName string, logger *zap.Logger) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dataSourceName = sqliteDSN(dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	logger.Info("Successfully connected to the database", zap.String("driver", driver))
	return db, nil
}

// sqliteDSN adds the pragmas the repositories rely on: WAL, a busy timeout for
// concurrent readers and a sortable time format.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Migrate runs the embedded migrations for the connection's dialect.
func Migrate(db *sqlx.DB, logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	dialect := db.DriverName()
	switch dialect {
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("no migrations for driver %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("couldn't open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "agentwatch", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully", zap.String("driver", dialect))
	return nil
}

// Querier is what the repositories need from a connection. Both *sqlx.DB and
// *sqlx.Tx satisfy it.
type Querier interface {
	sqlx.Queryer
	sqlx.Execer
	DriverName() string
	Rebind(query string) string
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
}

var (
	_ Querier = (*sqlx.DB)(nil)
	_ Querier = (*sqlx.Tx)(nil)
)

// Repositories bundles every repository over one connection.
type Repositories struct {
	Messages     MessageRepository
	Agents       AgentRepository
	Interactions InteractionRepository
	Growth       GrowthRepository
	Patterns     PatternRepository

	db     *sqlx.DB
	logger *zap.Logger
}

// New builds all repositories over db.
func New(db *sqlx.DB, logger *zap.Logger) *Repositories {
	r := bind(db, logger)
	r.db = db
	return r
}

func bind(q Querier, logger *zap.Logger) *Repositories {
	return &Repositories{
		Messages:     NewMessageRepository(q, logger),
		Agents:       NewAgentRepository(q, logger),
		Interactions: NewInteractionRepository(q, logger),
		Growth:       NewGrowthRepository(q, logger),
		Patterns:     NewPatternRepository(q, logger),
		logger:       logger,
	}
}

// InTx runs fn with repositories bound to one transaction. The transaction is
// committed when fn returns nil and rolled back otherwise. Repositories passed
// to fn cannot open a nested transaction.
func (r *Repositories) InTx(fn func(tx *Repositories) error) error {
	if r.db == nil {
		return errors.New("repositories are not bound to a database")
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(bind(tx, r.logger)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
