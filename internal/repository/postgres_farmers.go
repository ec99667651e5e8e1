package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akvo/ai-logbook/internal/domain"
)

// PostgresFarmersRepo 农户Repository实现
type PostgresFarmersRepo struct {
	db *sql.DB
}

// NewPostgresFarmersRepo 创建农户Repository
func NewPostgresFarmersRepo(db *sql.DB) *PostgresFarmersRepo {
	return &PostgresFarmersRepo{db: db}
}

var _ FarmersRepo = (*PostgresFarmersRepo)(nil)

const farmerColumns = `
	farmer_id::text,
	external_id,
	name,
	COALESCE(phone_number, '') AS phone_number,
	created_at,
	updated_at
`

// GetFarmer 按 ID 获取农户
func (r *PostgresFarmersRepo) GetFarmer(ctx context.Context, farmerID string) (*domain.Farmer, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("farmer_id is required")
	}
	query := `SELECT ` + farmerColumns + ` FROM farmers WHERE farmer_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, farmerID), farmerID)
}

// GetFarmerByExternalID 按外部标识（电话号码/注册码）获取农户
func (r *PostgresFarmersRepo) GetFarmerByExternalID(ctx context.Context, externalID string) (*domain.Farmer, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}
	query := `SELECT ` + farmerColumns + ` FROM farmers WHERE external_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, externalID), externalID)
}

// GetOrCreateFarmer 首次联系建档，已存在时返回现有农户
func (r *PostgresFarmersRepo) GetOrCreateFarmer(ctx context.Context, externalID, name, phoneNumber string) (*domain.Farmer, error) {
	farmer, err := r.GetFarmerByExternalID(ctx, externalID)
	if err == nil {
		return farmer, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	farmer = &domain.Farmer{
		FarmerID:    uuid.New().String(),
		ExternalID:  externalID,
		Name:        name,
		PhoneNumber: phoneNumber,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := r.CreateFarmer(ctx, farmer); err != nil {
		return nil, err
	}
	return farmer, nil
}

// CreateFarmer 新建农户（external_id 唯一）
func (r *PostgresFarmersRepo) CreateFarmer(ctx context.Context, farmer *domain.Farmer) error {
	if farmer == nil {
		return fmt.Errorf("farmer is required")
	}
	if farmer.ExternalID == "" || farmer.Name == "" {
		return fmt.Errorf("external_id and name are required")
	}
	if farmer.FarmerID == "" {
		farmer.FarmerID = uuid.New().String()
	}

	query := `
		INSERT INTO farmers (farmer_id, external_id, name, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx,
		query,
		farmer.FarmerID,
		farmer.ExternalID,
		farmer.Name,
		nullString(farmer.PhoneNumber),
		farmer.CreatedAt,
		farmer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create farmer: %w", err)
	}
	return nil
}

// UpdateFarmer 更新农户（external_id 不可变，只更新 name/phone_number）
func (r *PostgresFarmersRepo) UpdateFarmer(ctx context.Context, farmer *domain.Farmer) error {
	if farmer == nil || farmer.FarmerID == "" {
		return fmt.Errorf("farmer_id is required")
	}

	query := `
		UPDATE farmers SET
			name = $2,
			phone_number = $3,
			updated_at = NOW()
		WHERE farmer_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, farmer.FarmerID, farmer.Name, nullString(farmer.PhoneNumber))
	if err != nil {
		return fmt.Errorf("failed to update farmer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("farmer %s: %w", farmer.FarmerID, ErrNotFound)
	}
	return nil
}

// DeleteFarmer 删除农户（记录与消息由外键级联删除）
func (r *PostgresFarmersRepo) DeleteFarmer(ctx context.Context, farmerID string) error {
	if farmerID == "" {
		return fmt.Errorf("farmer_id is required")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM farmers WHERE farmer_id = $1`, farmerID)
	if err != nil {
		return fmt.Errorf("failed to delete farmer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("farmer %s: %w", farmerID, ErrNotFound)
	}
	return nil
}

// ListFarmers 列出农户，支持按名称/外部标识模糊搜索
func (r *PostgresFarmersRepo) ListFarmers(ctx context.Context, search string, offset, limit int) ([]*domain.Farmer, error) {
	query := `SELECT ` + farmerColumns + ` FROM farmers`
	var args []any
	if search != "" {
		args = append(args, "%"+search+"%")
		query += ` WHERE name ILIKE $1 OR external_id ILIKE $1`
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
		return nil, fmt.Errorf("failed to list farmers: %w", err)
	}
	defer rows.Close()

	var farmers []*domain.Farmer
	for rows.Next() {
		var f domain.Farmer
		if err := rows.Scan(&f.FarmerID, &f.ExternalID, &f.Name, &f.PhoneNumber, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan farmer: %w", err)
		}
		farmers = append(farmers, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate farmers: %w", err)
	}
	return farmers, nil
}

func (r *PostgresFarmersRepo) scanOne(row *sql.Row, key string) (*domain.Farmer, error) {
	var f domain.Farmer
	err := row.Scan(&f.FarmerID, &f.ExternalID, &f.Name, &f.PhoneNumber, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("farmer %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get farmer: %w", err)
	}
	return &f, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
