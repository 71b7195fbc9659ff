package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type migration struct {
	name      string
	statement string
}

// migrations are idempotent and applied in order on every start.
var migrations = []migration{
	{
		name: "create_departments",
		statement: `CREATE TABLE IF NOT EXISTS departments (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name: "create_admins",
		statement: `CREATE TABLE IF NOT EXISTS admins (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('SUPERADMIN', 'ADMIN', 'GUEST')),
    department_id TEXT REFERENCES departments(id) ON DELETE SET NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    last_login TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name: "create_batches",
		statement: `CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    year INTEGER NOT NULL,
    department_id TEXT NOT NULL REFERENCES departments(id) ON DELETE RESTRICT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (department_id, name, year)
)`,
	},
	{
		name: "create_batch_admins",
		statement: `CREATE TABLE IF NOT EXISTS batch_admins (
    batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    admin_id TEXT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
    PRIMARY KEY (batch_id, admin_id)
)`,
	},
	{
		name: "create_students",
		statement: `CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    reg_no TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    department_id TEXT NOT NULL REFERENCES departments(id) ON DELETE RESTRICT,
    batch_id TEXT REFERENCES batches(id) ON DELETE SET NULL,
    email TEXT NOT NULL DEFAULT '',
    mobile TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name:      "index_students_batch",
		statement: `CREATE INDEX IF NOT EXISTS idx_students_batch_id ON students (batch_id)`,
	},
	{
		name: "create_attendance_records",
		statement: `CREATE TABLE IF NOT EXISTS attendance_records (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    date TIMESTAMPTZ NOT NULL,
    session TEXT NOT NULL CHECK (session IN ('FN', 'AN')),
    marked_by TEXT REFERENCES admins(id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (batch_id, date, session)
)`,
	},
	{
		name: "create_attendance_entries",
		statement: `CREATE TABLE IF NOT EXISTS attendance_entries (
    record_id TEXT NOT NULL REFERENCES attendance_records(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    student_id TEXT,
    reg_no TEXT NOT NULL,
    student_name TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (record_id, reg_no)
)`,
	},
	{
		name: "create_refresh_tokens",
		statement: `CREATE TABLE IF NOT EXISTS refresh_tokens (
    id TEXT PRIMARY KEY,
    admin_id TEXT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    revoked_at TIMESTAMPTZ,
    ip_address TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT ''
)`,
	},
	{
		name: "create_audit_logs",
		statement: `CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    admin_id TEXT,
    action TEXT NOT NULL,
    resource TEXT NOT NULL,
    resource_id TEXT,
    old_values JSONB,
    new_values JSONB,
    ip_address TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name: "create_messages",
		statement: `CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    sender_id TEXT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
    recipient_id TEXT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    read_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name:      "index_messages_recipient",
		statement: `CREATE INDEX IF NOT EXISTS idx_messages_recipient_unread ON messages (recipient_id, read_at)`,
	},
}

// Migrate applies the schema. Each statement is safe to re-run.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("running database migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.statement); err != nil {
			logger.Error("migration failed", zap.String("migration", m.name), zap.Error(err))
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	logger.Info("database migrations completed")
	return nil
}
