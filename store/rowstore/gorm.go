package rowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore is a database-backed implementation of Store.
// Suitable for server deployments. One physical table holds every logical
// table; append order is preserved by the auto-increment primary key.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// rowRecord is the persisted shape of one logical row.
type rowRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Sheet     string `gorm:"size:64;index"`
	Cells     string
	CreatedAt time.Time
}

// TableName pins the physical table name.
func (rowRecord) TableName() string {
	return "staffline_rows"
}

// NewGormStore opens the configured database and migrates the row table.
func NewGormStore(cfg DatabaseConfig, logger *zap.Logger) (*GormStore, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&rowRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate row table: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("row store opened",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "rowstore_gorm")),
	}, nil
}

// openDialector maps the configured driver onto a gorm dialector.
func openDialector(cfg DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// ReadAll returns every row of the logical table in append order.
func (s *GormStore) ReadAll(ctx context.Context, table string) ([]Row, error) {
	var recs []rowRecord
	err := s.db.WithContext(ctx).
		Where("sheet = ?", table).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		var row Row
		if err := json.Unmarshal([]byte(rec.Cells), &row); err != nil {
			return nil, fmt.Errorf("corrupt row %d in table %s: %w", rec.ID, table, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow inserts one row at the end of the logical table.
func (s *GormStore) AppendRow(ctx context.Context, table string, row Row) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	rec := rowRecord{Sheet: table, Cells: string(cells)}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to append to table %s: %w", table, err)
	}
	return nil
}

// DeleteRow removes the row at index in append order.
func (s *GormStore) DeleteRow(ctx context.Context, table string, index int) error {
	if index < 0 {
		return ErrIndexOutOfRange
	}

	var recs []rowRecord
	err := s.db.WithContext(ctx).
		Select("id").
		Where("sheet = ?", table).
		Order("id ASC").
		Offset(index).
		Limit(1).
		Find(&recs).Error
	if err != nil {
		return fmt.Errorf("failed to locate row %d in table %s: %w", index, table, err)
	}
	if len(recs) == 0 {
		return ErrIndexOutOfRange
	}

	if err := s.db.WithContext(ctx).Delete(&rowRecord{}, recs[0].ID).Error; err != nil {
		return fmt.Errorf("failed to delete row %d in table %s: %w", index, table, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
