package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodhero/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// Create inserts a new user. A duplicate email surfaces domain.ErrConflict.
func (r *UserRepositoryPG) Create(ctx context.Context, user *domain.User) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO users (id, name, email, password_hash, phone, address, blood_group, age, gender, lat, lng)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`, user.ID, user.Name, user.Email, user.PasswordHash, user.Phone, user.Address,
		user.BloodGroup, user.Age, user.Gender, user.Location.Lat, user.Location.Lng)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// GetByID fetches a user by id.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail fetches a user by email.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, selectUser+` WHERE email = $1`, email)
	return scanUser(row)
}

// Update persists the mutable profile fields.
func (r *UserRepositoryPG) Update(ctx context.Context, user *domain.User) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET name = $2, phone = $3, address = $4, blood_group = $5, age = $6,
    gender = $7, lat = $8, lng = $9, updated_at = NOW()
WHERE id = $1;
`, user.ID, user.Name, user.Phone, user.Address, user.BloodGroup,
		user.Age, user.Gender, user.Location.Lat, user.Location.Lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const selectUser = `
SELECT id, name, email, password_hash, phone, address, blood_group, age, gender, lat, lng, created_at, updated_at
FROM users`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Address,
		&u.BloodGroup, &u.Age, &u.Gender, &u.Location.Lat, &u.Location.Lng,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
