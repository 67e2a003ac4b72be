package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountModel is the relational row for an account.
type accountModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	Login        string    `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName pins the table name independent of gorm naming rules.
func (accountModel) TableName() string {
	return "accounts"
}

func (m *accountModel) toAccount() *Account {
	return &Account{
		ID:           m.ID,
		Login:        m.Login,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

// PostgresStore implements Store on PostgreSQL through gorm. The unique
// index on login together with ON CONFLICT DO NOTHING gives Create its
// insert-if-absent semantics.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgresStore connects to the database and migrates the schema.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: DSN must not be empty")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return NewPostgresStore(gdb)
}

// NewPostgresStore wraps an existing gorm handle and migrates the schema.
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&accountModel{}); err != nil {
		return nil, fmt.Errorf("migrate accounts: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Get retrieves an account by its ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	var row accountModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return row.toAccount(), nil
}

// FindByLogin retrieves an account by its login.
func (s *PostgresStore) FindByLogin(ctx context.Context, login string) (*Account, error) {
	if login == "" {
		return nil, ErrInvalidLogin
	}

	var row accountModel
	err := s.db.WithContext(ctx).Where("login = ?", login).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	return row.toAccount(), nil
}

// Create inserts the account; a conflicting login yields ErrAlreadyExists.
func (s *PostgresStore) Create(ctx context.Context, account *Account) (*Account, error) {
	if account == nil {
		return nil, ErrNilAccount
	}

	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	row := accountModel{
		ID:           uuid.New().String(),
		Login:        account.Login,
		PasswordHash: account.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "login"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("create account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyExists
	}

	return row.toAccount(), nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("postgres handle: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("postgres handle: %w", err)
	}

	return sqlDB.Close()
}
