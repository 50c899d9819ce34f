package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bcaldwell/moneymanager/pkg/config"
)

type Provider string

const (
	Plaid  Provider = "plaid"
	Teller Provider = "teller"
)

// Credential is one linked bank connection. Rows are created when a link is exchanged and
// deleted on unlink, they are never updated.
type Credential struct {
	bun.BaseModel   `bun:"table:linked_account_credentials"`
	ID              string             `bun:",pk"`
	UserID          string             `bun:",notnull"`
	AccessToken     string             `bun:",notnull"`
	ItemID          string             `bun:",notnull"` // plaid item id or teller enrollment id
	InstitutionID   string             `bun:",nullzero"`
	ServiceProvider Provider           `bun:",notnull"`
	Environment     config.Environment `bun:",notnull"`
	CreatedAt       time.Time          `bun:",notnull"`
}

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*Credential)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*Credential)(nil)).
		Index("linked_account_credentials_user_env_idx").
		IfNotExists().
		Column("user_id", "environment").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create credentials index: %w", err)
	}

	return nil
}

// Create fills in the id and creation time and stores the credential
func (s *Store) Create(ctx context.Context, c *Credential) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NewInsert().Model(c).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert credential for user %s: %w", c.UserID, err)
	}

	return nil
}

// ListForUser returns the user's credentials for one environment, oldest first
func (s *Store) ListForUser(ctx context.Context, userID string, env config.Environment) ([]Credential, error) {
	creds := []Credential{}
	err := s.db.NewSelect().
		Model(&creds).
		Where("user_id = ?", userID).
		Where("environment = ?", env).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials for user %s: %w", userID, err)
	}

	return creds, nil
}

// ListAll returns every credential of an environment
func (s *Store) ListAll(ctx context.Context, env config.Environment) ([]Credential, error) {
	creds := []Credential{}
	err := s.db.NewSelect().
		Model(&creds).
		Where("environment = ?", env).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return creds, nil
}

// Delete removes one of the user's credentials. Deleting a credential that does not exist
// is not an error.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.NewDelete().
		Model((*Credential)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", id, err)
	}

	return nil
}
