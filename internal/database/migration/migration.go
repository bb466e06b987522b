package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_artifacts",
		SQL: `CREATE TABLE IF NOT EXISTS artifacts (
  public_id          UUID        PRIMARY KEY,
  original_name      TEXT        NOT NULL,
  mime_type          TEXT        NOT NULL,
  size_bytes         BIGINT      NOT NULL CHECK (size_bytes >= 0),
  storage_handle     TEXT        NOT NULL UNIQUE,
  owner_identity     TEXT,
  recipient_identity TEXT,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at         TIMESTAMPTZ NOT NULL,
  access_count       BIGINT      NOT NULL DEFAULT 0 CHECK (access_count >= 0),
  lifecycle_state    TEXT        NOT NULL DEFAULT 'active' CHECK (lifecycle_state IN ('active', 'soft_deleted')),
  deleted_at         TIMESTAMPTZ,
  purging            BOOLEAN     NOT NULL DEFAULT false,
  CONSTRAINT artifacts_deleted_at_matches_state CHECK ((lifecycle_state = 'soft_deleted') = (deleted_at IS NOT NULL)),
  CONSTRAINT artifacts_purging_requires_soft_deleted CHECK (NOT purging OR lifecycle_state = 'soft_deleted')
);`,
	},
	{
		Name: "create_index_artifacts_owner_state",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_artifacts_owner_state ON artifacts (owner_identity, lifecycle_state, created_at DESC);`,
	},
	{
		Name: "create_index_artifacts_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_artifacts_expires_at ON artifacts (expires_at);`,
	},
	{
		Name: "create_table_artifact_tombstones",
		SQL: `CREATE TABLE IF NOT EXISTS artifact_tombstones (
  public_id UUID        PRIMARY KEY,
  purged_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
}

// sentinelTable is created by the last step; its presence means the schema is complete.
const sentinelTable = "public.artifact_tombstones"

// EnsureMigrated checks for the sentinel table and runs the schema steps if it is missing.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With(slog.String("component", "database"), slog.String("db_host", dbHost))

	log.Info("db_migration_check", slog.String("status", "starting"))

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			slog.String("status", "error"),
			slog.String("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			slog.String("status", "success"),
			slog.String("detail", "schema already exists, skipping migration"),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", slog.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				slog.String("status", "error"),
				slog.String("migration_step", step.Name),
				slog.String("error_message", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			slog.String("status", "success"),
			slog.String("migration_step", step.Name),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		slog.String("status", "success"),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
