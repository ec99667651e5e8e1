//go:build ignore

// 初始化 logbook 数据库表。
// 用法: go run scripts/create_tables.go （通过 DB_* 环境变量指定连接）
package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/akvo/ai-logbook/internal/config"
	"github.com/akvo/ai-logbook/internal/database"
)

const ddl = `
CREATE TABLE IF NOT EXISTS farmers (
    farmer_id    UUID PRIMARY KEY,
    external_id  TEXT NOT NULL UNIQUE,
    name         TEXT NOT NULL,
    phone_number TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
    message_id   UUID PRIMARY KEY,
    farmer_id    UUID NOT NULL REFERENCES farmers(farmer_id) ON DELETE CASCADE,
    provider_sid TEXT NOT NULL UNIQUE,
    direction    TEXT NOT NULL,
    content      TEXT,
    media_url    TEXT,
    processed    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS records (
    record_id         UUID PRIMARY KEY,
    farmer_id         UUID NOT NULL REFERENCES farmers(farmer_id) ON DELETE CASCADE,
    message_id        UUID REFERENCES messages(message_id) ON DELETE SET NULL,
    record_type       TEXT NOT NULL,
    occurred_at       DATE,
    data              JSONB NOT NULL DEFAULT '{}'::jsonb,
    source_channel    TEXT NOT NULL DEFAULT 'whatsapp',
    source_input_mode TEXT NOT NULL DEFAULT 'text',
    source_language   TEXT NOT NULL DEFAULT 'unknown',
    confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
    missing_fields    TEXT[] NOT NULL DEFAULT '{}',
    needs_followup    BOOLEAN NOT NULL DEFAULT FALSE,
    confirmed         BOOLEAN NOT NULL DEFAULT FALSE,
    quality_notes     TEXT,
    raw_transcript    TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_records_pending
    ON records (farmer_id, created_at DESC)
    WHERE confirmed = FALSE AND needs_followup = TRUE;

CREATE INDEX IF NOT EXISTS idx_records_farmer ON records (farmer_id);
CREATE INDEX IF NOT EXISTS idx_records_type ON records (record_type);
`

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Exec(ddl); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("logbook tables created successfully")
}
