package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

// MySQL stores values in a kv_store table through database/sql.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens the connection, verifies it and creates the table.
func NewMySQL(ctx context.Context, cfg config.MySQLConfig, logger *zap.Logger) (*MySQL, error) {
	if cfg.DSN == "" {
		return nil, errors.New("mysql driver selected but MYSQL_DSN is empty")
	}
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	dsn.ParseTime = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store (
			store_key   VARCHAR(191) PRIMARY KEY,
			store_value LONGBLOB NOT NULL,
			updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: create kv_store: %w", err)
	}

	logger.Info("connected to mysql", zap.String("addr", dsn.Addr), zap.String("db", dsn.DBName))
	return &MySQL{db: db}, nil
}

func (m *MySQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := m.db.QueryRowContext(ctx, `SELECT store_value FROM kv_store WHERE store_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *MySQL) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO kv_store (store_key, store_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE store_value = VALUES(store_value)`, key, value)
	return err
}

func (m *MySQL) Remove(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM kv_store WHERE store_key = ?`, key)
	return err
}

func (m *MySQL) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
