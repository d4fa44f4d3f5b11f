package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/medicab/scheduler/internal/config"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/medicab/scheduler/internal/domain/audit"
	"github.com/medicab/scheduler/internal/domain/schedule"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// ObservePool samples the pool's open-connection count into the gauge
// every 15 seconds. Blocks until ctx is cancelled.
func ObservePool(ctx context.Context, db *gorm.DB, gauge prometheus.Gauge) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gauge.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"scheduling", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&appointment.Appointment{},
		&schedule.TimeOff{},
		&audit.Log{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createConstraints(db); err != nil {
		return fmt.Errorf("creating constraints: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// createConstraints adds the overlap exclusion constraints and the partial
// indexes the conflict queries rely on. The exclusion constraints are the
// write-time backstop for the double-booking invariant: even if a caller
// bypasses the per-actor advisory locks, postgres rejects the second of
// two overlapping inserts for the same doctor or patient.
func createConstraints(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("enabling btree_gist: %w", err)
	}

	statements := []struct {
		name  string
		query string
	}{
		{
			name: "appointments_doctor_no_overlap",
			query: `ALTER TABLE scheduling.appointments
				ADD CONSTRAINT appointments_doctor_no_overlap
				EXCLUDE USING gist (
					doctor_id WITH =,
					tsrange(start_at, start_at + make_interval(mins => duration_mins)) WITH &&
				) WHERE (status <> 'cancelled' AND deleted_at IS NULL)`,
		},
		{
			name: "appointments_patient_no_overlap",
			query: `ALTER TABLE scheduling.appointments
				ADD CONSTRAINT appointments_patient_no_overlap
				EXCLUDE USING gist (
					patient_id WITH =,
					tsrange(start_at, start_at + make_interval(mins => duration_mins)) WITH &&
				) WHERE (status <> 'cancelled' AND deleted_at IS NULL)`,
		},
		{
			name: "idx_appointments_doctor_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_doctor_schedule
				ON scheduling.appointments (doctor_id, start_at, duration_mins)
				WHERE deleted_at IS NULL AND status <> 'cancelled'`,
		},
		{
			name: "idx_appointments_patient_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_patient_schedule
				ON scheduling.appointments (patient_id, start_at, duration_mins)
				WHERE deleted_at IS NULL AND status <> 'cancelled'`,
		},
		{
			name: "idx_appointments_time_range",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_time_range
				ON scheduling.appointments (start_at, status)
				WHERE deleted_at IS NULL`,
		},
	}

	for _, stmt := range statements {
		// ALTER TABLE ... ADD CONSTRAINT has no IF NOT EXISTS; a rerun
		// reports 42710 (duplicate object) which is safe to skip. Any
		// other failure must abort startup: without the exclusion
		// constraints the database no longer rejects overlapping writes.
		if err := db.Exec(stmt.query).Error; err != nil {
			if isDuplicateObject(err) {
				continue
			}
			return fmt.Errorf("applying %s: %w", stmt.name, err)
		}
	}

	return nil
}

func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42710"
}
