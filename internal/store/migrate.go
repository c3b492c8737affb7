package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// schemaVersion is the current expected schema version.
const schemaVersion = 4

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is applied in order, each exactly once, tracked in schema_version.
// Timestamps are UTC unix nanoseconds.
var migrations = []migration{
	{
		Version:     1,
		Description: "inboxes, contacts, inbox_messages, inbox_message_operations",
		SQL: `
		CREATE TABLE IF NOT EXISTS inboxes (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			display_label TEXT DEFAULT '',
			kind          TEXT NOT NULL,
			created_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS contacts (
			id                 TEXT PRIMARY KEY,
			email              TEXT,
			phone_number       TEXT,
			full_name          TEXT,
			slack_display_name TEXT,
			status             TEXT NOT NULL DEFAULT 'INBOUND',
			created_at         INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
		CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone_number);

		CREATE TABLE IF NOT EXISTS inbox_messages (
			id          TEXT PRIMARY KEY,
			inbox_id    TEXT NOT NULL REFERENCES inboxes(id),
			contact_id  TEXT NOT NULL,
			body        TEXT NOT NULL,
			thread_id   TEXT,
			external_id TEXT,
			metadata    TEXT,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_inbox_messages_created ON inbox_messages(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_inbox_messages_contact ON inbox_messages(contact_id, created_at);

		CREATE TABLE IF NOT EXISTS inbox_message_operations (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			inbox_message_id TEXT NOT NULL REFERENCES inbox_messages(id),
			operation        TEXT NOT NULL,
			execution_id     TEXT,
			created_at       INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ops_latest ON inbox_message_operations(inbox_message_id, created_at DESC, id DESC);
		`,
	},
	{
		Version:     2,
		Description: "outbox_messages, outbox_message_recipients",
		SQL: `
		CREATE TABLE IF NOT EXISTS outbox_messages (
			id                      TEXT PRIMARY KEY,
			parent_inbox_message_id TEXT REFERENCES inbox_messages(id),
			body                    TEXT NOT NULL,
			kind                    TEXT NOT NULL,
			thread_id               TEXT,
			created_at              INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_parent ON outbox_messages(parent_inbox_message_id);

		CREATE TABLE IF NOT EXISTS outbox_message_recipients (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			outbox_message_id TEXT NOT NULL REFERENCES outbox_messages(id),
			contact_id        TEXT NOT NULL,
			role              TEXT NOT NULL DEFAULT 'TO'
		);
		CREATE INDEX IF NOT EXISTS idx_recipients_contact ON outbox_message_recipients(contact_id);
		`,
	},
	{
		Version:     3,
		Description: "jobs, job_sessions",
		SQL: `
		CREATE TABLE IF NOT EXISTS jobs (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			description    TEXT DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'OPEN',
			priority       INTEGER DEFAULT 0,
			contact_id     TEXT,
			parent_job_id  TEXT REFERENCES jobs(id),
			due_at         INTEGER,
			blocked_reason TEXT DEFAULT '',
			created_at     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_parent ON jobs(parent_job_id);

		CREATE TABLE IF NOT EXISTS job_sessions (
			id       TEXT PRIMARY KEY,
			job_id   TEXT NOT NULL REFERENCES jobs(id),
			start_at INTEGER NOT NULL,
			end_at   INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_job_sessions_job ON job_sessions(job_id, end_at);
		`,
	},
	{
		Version:     4,
		Description: "unique external id per inbox",
		SQL: `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_inbox_messages_external
			ON inbox_messages(inbox_id, external_id) WHERE external_id IS NOT NULL;
		`,
	},
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	currentVersion := 0
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			logger.Warn("migration SQL partially failed, retrying per statement",
				"version", m.Version,
				"err", err,
			)
			if err := applyMigrationStatements(db, m, logger); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
				m.Version, m.Description,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration v%d: %w", m.Version, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit migration v%d: %w", m.Version, err)
			}
		}

		logger.Info("migration applied", "version", m.Version)
	}

	return nil
}

// applyMigrationStatements applies each statement on its own, skipping
// "duplicate column" and "already exists" failures.
func applyMigrationStatements(db *sql.DB, m migration, logger *slog.Logger) error {
	for _, stmt := range splitSQL(m.SQL) {
		if _, err := db.Exec(stmt); err != nil {
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists") {
				logger.Debug("migration statement skipped (already applied)", "stmt_prefix", truncate(stmt, 60))
				continue
			}
			return fmt.Errorf("migration v%d statement failed: %w\nSQL: %s", m.Version, err, truncate(stmt, 200))
		}
	}

	if _, err := db.Exec(
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", m.Version, err)
	}
	return nil
}

// splitSQL splits a multi-statement SQL string on semicolons.
func splitSQL(sql string) []string {
	var result []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// GetSchemaVersion returns the current schema version, 0 for a fresh database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err != nil {
		return 0, nil
	}

	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
