package repository

import (
	"context"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"

	"github.com/AlibekovAA/devicehub/internal/common/db"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

const userColumnsPg = `id::text, name, password_hash, role, is_blocked, is_logged, expiration_date, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// MigratePostgres applies the embedded Postgres migrations through a
// database/sql handle borrowed from the pool configuration.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	return migrate(ctx, sqlDB, "postgres", "migrations/postgres")
}

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (id, name, password_hash, role, is_blocked, is_logged, expiration_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(user.ID),
		user.Name,
		user.PasswordHash,
		string(user.Role),
		user.IsBlocked,
		user.IsLogged,
		user.ExpirationDate.UTC(),
		user.CreatedAt.UTC(),
	)
	if db.IsUniqueViolation(err) {
		db.HandleExecError(db.DriverPostgres, nil, "create user", start)
		return commonerrors.ErrNameTaken
	}
	return db.HandleExecError(db.DriverPostgres, err, "create user", start)
}

func scanUserPg(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.PasswordHash,
		&role,
		&user.IsBlocked,
		&user.IsLogged,
		&user.ExpirationDate,
		&user.CreatedAt,
	)
	user.Role = domain.Role(role)
	return user, err
}

func (r *PgRepository) FindByName(ctx context.Context, name string) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, `SELECT `+userColumnsPg+` FROM users WHERE name = $1`, name)

	user, err := scanUserPg(row)
	if err := db.HandleQueryError(db.DriverPostgres, err, commonerrors.ErrUserNotFound, "find user by name", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, `SELECT `+userColumnsPg+` FROM users WHERE id = $1`, string(id))

	user, err := scanUserPg(row)
	if err := db.HandleQueryError(db.DriverPostgres, err, commonerrors.ErrUserNotFound, "find user by id", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) List(ctx context.Context) ([]domain.UserWithApp, error) {
	start := time.Now()
	rows, err := r.pool.Query(
		ctx,
		`SELECT u.id::text, u.name, u.password_hash, u.role, u.is_blocked, u.is_logged,
		        u.expiration_date, u.created_at, a.name, a.start_at
		 FROM users u
		 LEFT JOIN running_apps a ON a.user_id = u.id
		 ORDER BY u.created_at ASC, u.name ASC`,
	)
	if err != nil {
		return nil, db.HandleQueryError(db.DriverPostgres, err, nil, "list users", start)
	}
	defer rows.Close()

	users := make([]domain.UserWithApp, 0)
	for rows.Next() {
		var (
			u        domain.UserWithApp
			role     string
			appName  *string
			appStart *time.Time
		)
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.PasswordHash,
			&role,
			&u.IsBlocked,
			&u.IsLogged,
			&u.ExpirationDate,
			&u.CreatedAt,
			&appName,
			&appStart,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = domain.Role(role)
		if appName != nil && appStart != nil {
			u.App = &domain.RunningApp{UserID: u.ID, Name: *appName, StartAt: *appStart}
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, db.HandleQueryError(db.DriverPostgres, err, nil, "list users", start)
	}

	db.HandleQueryError(db.DriverPostgres, nil, nil, "list users", start)
	return users, nil
}

func (r *PgRepository) Delete(ctx context.Context, id domain.ID) error {
	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, string(id))
	if err := db.HandleExecError(db.DriverPostgres, err, "delete user", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) SetLogged(ctx context.Context, id domain.ID, logged bool) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_logged = $2 WHERE id = $1`, string(id), logged)
	return db.HandleExecError(db.DriverPostgres, err, "set user logged", start)
}

func (r *PgRepository) SetBlocked(ctx context.Context, id domain.ID, blocked bool) error {
	start := time.Now()
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_blocked = $2 WHERE id = $1`, string(id), blocked)
	if err := db.HandleExecError(db.DriverPostgres, err, "set user blocked", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) UpdateExpiration(ctx context.Context, id domain.ID, fn func(time.Time) time.Time) (time.Time, error) {
	start := time.Now()
	var updated time.Time

	err := r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var current time.Time
		row := tx.QueryRow(ctx, `SELECT expiration_date FROM users WHERE id = $1 FOR UPDATE`, string(id))
		if err := row.Scan(&current); err != nil {
			return err
		}

		updated = fn(current).UTC()
		_, err := tx.Exec(ctx, `UPDATE users SET expiration_date = $2 WHERE id = $1`, string(id), updated)
		return err
	})
	if err := db.HandleQueryError(db.DriverPostgres, err, commonerrors.ErrUserNotFound, "update user expiration", start); err != nil {
		return time.Time{}, err
	}
	return updated, nil
}

func (r *PgRepository) UpsertRunningApp(ctx context.Context, app domain.RunningApp) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO running_apps (user_id, name, start_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, start_at = EXCLUDED.start_at`,
		string(app.UserID),
		app.Name,
		app.StartAt.UTC(),
	)
	return db.HandleExecError(db.DriverPostgres, err, "upsert running app", start)
}

func (r *PgRepository) FindRunningApp(ctx context.Context, id domain.ID) (domain.RunningApp, error) {
	start := time.Now()
	app := domain.RunningApp{UserID: id}
	err := r.pool.QueryRow(
		ctx,
		`SELECT name, start_at FROM running_apps WHERE user_id = $1`,
		string(id),
	).Scan(&app.Name, &app.StartAt)
	if err := db.HandleQueryError(db.DriverPostgres, err, ErrRunningAppNotFound, "find running app", start); err != nil {
		return domain.RunningApp{}, err
	}
	return app, nil
}

func (r *PgRepository) DeleteRunningApps(ctx context.Context, id domain.ID) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx, `DELETE FROM running_apps WHERE user_id = $1`, string(id))
	return db.HandleExecError(db.DriverPostgres, err, "delete running apps", start)
}

func (r *PgRepository) ResetPresence(ctx context.Context) error {
	start := time.Now()
	err := r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET is_logged = FALSE WHERE is_logged`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM running_apps`)
		return err
	})
	return db.HandleExecError(db.DriverPostgres, err, "reset presence", start)
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PgRepository) Close() {
	r.pool.Close()
}
