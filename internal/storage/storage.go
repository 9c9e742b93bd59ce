package storage

import (
	"alumni_network/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	usersTable = "users"

	userColumns = "id, email, password_hash, name, role, phone, school_name, profile_image, is_active, created_at, updated_at, last_login"

	uniqueViolation = "23505"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already taken")
)

type Storage interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, filter models.UserFilter) (int, error)

	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (models.User, error)

	SetActive(ctx context.Context, userID int64, active bool) error
	AssignRole(ctx context.Context, userID int64, role models.Role) error

	Ping(ctx context.Context) error
	Close()
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user models.User
		role string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&role,
		&user.Phone,
		&user.SchoolName,
		&user.ProfileImage,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	user.Role = models.Role(role)

	return user, err
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	query := fmt.Sprintf(`INSERT INTO %s(email, password_hash, name, role, phone, school_name, profile_image, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING %s;`, usersTable, userColumns)

	created, err := scanUser(p.db.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		user.Phone,
		user.SchoolName,
		user.ProfileImage,
		user.IsActive,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE lower(email)=lower($1);", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return user, nil
}

// EmailExists covers active and inactive accounts alike.
func (p *PostgresStorage) EmailExists(ctx context.Context, email string) (bool, error) {
	const op = "storage.EmailExists"

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE lower(email)=lower($1));", usersTable)

	if err := p.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// userConditions builds the WHERE clause shared by ListUsers and CountUsers.
func userConditions(filter models.UserFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		if filter.SearchEmail {
			conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
		} else {
			conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (p *PostgresStorage) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	const op = "storage.ListUsers"

	where, args := userConditions(filter)

	query := fmt.Sprintf("SELECT %s FROM %s%s", userColumns, usersTable, where)
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d;", len(args)-1, len(args))

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]models.User, 0, filter.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) CountUsers(ctx context.Context, filter models.UserFilter) (int, error) {
	const op = "storage.CountUsers"

	where, args := userConditions(filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s;", usersTable, where)

	var total int
	if err := p.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return total, nil
}

func (p *PostgresStorage) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	const op = "storage.UpdateLastLogin"

	query := fmt.Sprintf("UPDATE %s SET last_login=$1 WHERE id=$2;", usersTable)

	return p.execOne(ctx, op, query, at, userID)
}

func (p *PostgresStorage) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	const op = "storage.UpdatePassword"

	query := fmt.Sprintf("UPDATE %s SET password_hash=$1, updated_at=now() WHERE id=$2;", usersTable)

	return p.execOne(ctx, op, query, passwordHash, userID)
}

func (p *PostgresStorage) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (models.User, error) {
	const op = "storage.UpdateProfile"

	query := fmt.Sprintf(`UPDATE %s
	SET name = COALESCE($1, name),
	    phone = COALESCE($2, phone),
	    profile_image = COALESCE($3, profile_image),
	    updated_at = now()
	WHERE id = $4 AND is_active = TRUE
	RETURNING %s;`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, upd.Name, upd.Phone, upd.ProfileImage, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return user, nil
}

func (p *PostgresStorage) SetActive(ctx context.Context, userID int64, active bool) error {
	const op = "storage.SetActive"

	query := fmt.Sprintf("UPDATE %s SET is_active=$1, updated_at=now() WHERE id=$2;", usersTable)

	return p.execOne(ctx, op, query, active, userID)
}

func (p *PostgresStorage) AssignRole(ctx context.Context, userID int64, role models.Role) error {
	const op = "storage.AssignRole"

	query := fmt.Sprintf("UPDATE %s SET role=$1, updated_at=now() WHERE id=$2;", usersTable)

	return p.execOne(ctx, op, query, string(role), userID)
}

func (p *PostgresStorage) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
