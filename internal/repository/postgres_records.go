package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/akvo/ai-logbook/internal/domain"
)

// PostgresRecordsRepo 记录Repository实现
type PostgresRecordsRepo struct {
	db *sql.DB
}

// NewPostgresRecordsRepo 创建记录Repository
func NewPostgresRecordsRepo(db *sql.DB) *PostgresRecordsRepo {
	return &PostgresRecordsRepo{db: db}
}

// 确保实现了接口
var _ RecordsRepo = (*PostgresRecordsRepo)(nil)

const recordColumns = `
	record_id::text,
	farmer_id::text,
	message_id::text,
	record_type,
	occurred_at,
	COALESCE(data, '{}'::jsonb)::text AS data,
	source_channel,
	source_input_mode,
	source_language,
	confidence,
	missing_fields,
	needs_followup,
	confirmed,
	COALESCE(quality_notes, '') AS quality_notes,
	COALESCE(raw_transcript, '') AS raw_transcript,
	created_at
`

// CreateRecord 新建记录
func (r *PostgresRecordsRepo) CreateRecord(ctx context.Context, record *domain.Record) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.RecordID == "" || record.FarmerID == "" {
		return fmt.Errorf("record_id and farmer_id are required")
	}

	dataJSON, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal record data: %w", err)
	}

	query := `
		INSERT INTO records (
			record_id,
			farmer_id,
			message_id,
			record_type,
			occurred_at,
			data,
			source_channel,
			source_input_mode,
			source_language,
			confidence,
			missing_fields,
			needs_followup,
			confirmed,
			quality_notes,
			raw_transcript,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err = r.db.ExecContext(ctx,
		query,
		record.RecordID,
		record.FarmerID,
		nullString(record.MessageID),
		string(record.RecordType),
		record.OccurredAt,
		string(dataJSON),
		record.SourceChannel,
		record.SourceInputMode,
		record.SourceLanguage,
		record.Confidence,
		pq.Array(record.MissingFields),
		record.NeedsFollowup,
		record.Confirmed,
		nullString(record.QualityNotes),
		nullString(record.RawTranscript),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// UpdateRecord 整行写回（合并与重评估在上层完成）
func (r *PostgresRecordsRepo) UpdateRecord(ctx context.Context, record *domain.Record) error {
	if record == nil || record.RecordID == "" {
		return fmt.Errorf("record_id is required")
	}

	dataJSON, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal record data: %w", err)
	}

	query := `
		UPDATE records SET
			record_type = $2,
			occurred_at = $3,
			data = $4,
			confidence = $5,
			missing_fields = $6,
			needs_followup = $7,
			confirmed = $8,
			quality_notes = $9,
			raw_transcript = $10
		WHERE record_id = $1
	`

	result, err := r.db.ExecContext(ctx,
		query,
		record.RecordID,
		string(record.RecordType),
		record.OccurredAt,
		string(dataJSON),
		record.Confidence,
		pq.Array(record.MissingFields),
		record.NeedsFollowup,
		record.Confirmed,
		nullString(record.QualityNotes),
		nullString(record.RawTranscript),
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("record %s: %w", record.RecordID, ErrNotFound)
	}
	return nil
}

// GetRecord 按 ID 获取记录
func (r *PostgresRecordsRepo) GetRecord(ctx context.Context, recordID string) (*domain.Record, error) {
	if recordID == "" {
		return nil, fmt.Errorf("record_id is required")
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE record_id = $1`
	record, err := scanRecord(r.db.QueryRowContext(ctx, query, recordID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("record %s: %w", recordID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// DeleteRecord 删除记录
func (r *PostgresRecordsRepo) DeleteRecord(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("record_id is required")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE record_id = $1`, recordID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}
	return nil
}

// FindPendingByFarmer 查找该农户最近一条进行中记录，没有时返回 (nil, nil)
func (r *PostgresRecordsRepo) FindPendingByFarmer(ctx context.Context, farmerID string) (*domain.Record, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("farmer_id is required")
	}

	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE farmer_id = $1 AND confirmed = FALSE AND needs_followup = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	record, err := scanRecord(r.db.QueryRowContext(ctx, query, farmerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending record: %w", err)
	}
	return record, nil
}

// ListRecords 按过滤器列出记录（按创建时间倒序）
func (r *PostgresRecordsRepo) ListRecords(ctx context.Context, filters RecordFilters, offset, limit int) ([]*domain.Record, error) {
	var conditions []string
	var args []any

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filters.FarmerID != "" {
		addCondition("farmer_id = $%d", filters.FarmerID)
	}
	if filters.RecordType != "" {
		addCondition("record_type = $%d", string(filters.RecordType))
	}
	if filters.NeedsFollowup != nil {
		addCondition("needs_followup = $%d", *filters.NeedsFollowup)
	}
	if filters.Confirmed != nil {
		addCondition("confirmed = $%d", *filters.Confirmed)
	}
	if filters.DateFrom != nil {
		addCondition("occurred_at >= $%d", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		addCondition("occurred_at <= $%d", *filters.DateTo)
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var record domain.Record
	var recordType string
	var messageID, qualityNotes, rawTranscript sql.NullString
	var occurredAt sql.NullTime
	var dataRaw string
	var missingFields pq.StringArray

	err := row.Scan(
		&record.RecordID,
		&record.FarmerID,
		&messageID,
		&recordType,
		&occurredAt,
		&dataRaw,
		&record.SourceChannel,
		&record.SourceInputMode,
		&record.SourceLanguage,
		&record.Confidence,
		&missingFields,
		&record.NeedsFollowup,
		&record.Confirmed,
		&qualityNotes,
		&rawTranscript,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.RecordType = domain.ParseRecordType(recordType)
	if messageID.Valid {
		record.MessageID = messageID.String
	}
	if occurredAt.Valid {
		t := occurredAt.Time
		record.OccurredAt = &t
	}
	record.Data = domain.RecordData{}
	if dataRaw != "" {
		if err := json.Unmarshal([]byte(dataRaw), &record.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record data: %w", err)
		}
	}
	record.MissingFields = []string(missingFields)
	if record.MissingFields == nil {
		record.MissingFields = []string{}
	}
	record.QualityNotes = qualityNotes.String
	record.RawTranscript = rawTranscript.String

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
