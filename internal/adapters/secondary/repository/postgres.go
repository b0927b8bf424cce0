package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// sqlUser est le DTO interne entre Postgres et le domaine.
type sqlUser struct {
	ID           string
	Username     string
	FullName     string
	ImageURL     string
	FollowerIDs  []string
	FollowingIDs []string
	Version      int64
	CreatedAt    time.Time
}

const userColumns = `id, username, full_name, image_url, follower_ids, following_ids, version, created_at`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// EnsureSchema crée la table et l'index (idempotent).
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			username      TEXT NOT NULL,
			full_name     TEXT NOT NULL DEFAULT '',
			image_url     TEXT NOT NULL DEFAULT '',
			follower_ids  TEXT[] NOT NULL DEFAULT '{}',
			following_ids TEXT[] NOT NULL DEFAULT '{}',
			version       BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at);
	`
	_, err := r.db.Exec(ctx, q)
	return err
}

func (r *PostgresStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u sqlUser
	err := r.db.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.FullName, &u.ImageURL, &u.FollowerIDs, &u.FollowingIDs, &u.Version, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound // traduction technique -> domaine
		}
		return nil, dbError("get by id", err)
	}

	return toDomain(&u), nil
}

// ListAll relit l'état courant, dans l'ordre de création.
func (r *PostgresStore) ListAll(ctx context.Context) ([]*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, dbError("list users", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Search filtre sur username / full name (sous-ensemble de ListAll).
func (r *PostgresStore) Search(ctx context.Context, query string) ([]*domain.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%'
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, q, query)
	if err != nil {
		return nil, dbError("search users", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ApplyEdgeChange écrit les deux côtés de l'arête dans UNE transaction,
// chaque UPDATE étant conditionné par la version observée à la lecture.
// Zéro ligne touchée d'un côté = version périmée (ou ligne disparue) :
// rollback complet, jamais d'état hybride persisté.
func (r *PostgresStore) ApplyEdgeChange(ctx context.Context, change domain.EdgeChange) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return dbError("begin edge change", err)
	}
	defer tx.Rollback(ctx)

	if err := r.casUpdate(ctx, tx,
		`UPDATE users SET following_ids = $1, version = version + 1 WHERE id = $2 AND version = $3`,
		change.NewFollowing, change.Edge.FollowerID, change.FollowerVersion,
	); err != nil {
		return err
	}

	if err := r.casUpdate(ctx, tx,
		`UPDATE users SET follower_ids = $1, version = version + 1 WHERE id = $2 AND version = $3`,
		change.NewFollowers, change.Edge.FolloweeID, change.FolloweeVersion,
	); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return dbError("commit edge change", err)
	}

	return nil
}

// casUpdate distingue "version périmée" (ErrConflict) de "ligne absente"
// (ErrUserNotFound) quand l'UPDATE conditionnel ne touche rien.
func (r *PostgresStore) casUpdate(ctx context.Context, tx pgx.Tx, q string, ids []string, userID string, version int64) error {
	tag, err := tx.Exec(ctx, q, ids, userID, version)
	if err != nil {
		return dbError("cas update", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return dbError("cas existence check", err)
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return domain.ErrConflict
}

// --- HELPERS ---

// dbError traduit les échecs de connectivité en ErrUnavailable (le client
// peut réessayer) et laisse les vraies erreurs SQL telles quelles.
func dbError(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("db: %s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("db: %s: %w", op, err)
}

func isUnavailable(err error) bool {
	// Classe 08 = Connection Exception (connection_failure, admin shutdown...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}

	// Échec au moment de se connecter (pool qui n'arrive plus à dialer)
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	// La requête n'est jamais partie sur le réseau : connexion indisponible
	return pgconn.SafeToRetry(err)
}

func collectUsers(rows pgx.Rows) ([]*domain.User, error) {
	var out []*domain.User
	for rows.Next() {
		var u sqlUser
		if err := rows.Scan(
			&u.ID, &u.Username, &u.FullName, &u.ImageURL, &u.FollowerIDs, &u.FollowingIDs, &u.Version, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("db: scan user: %w", err)
		}
		out = append(out, toDomain(&u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate users: %w", err)
	}
	return out, nil
}

func toDomain(u *sqlUser) *domain.User {
	return &domain.User{
		ID:           u.ID,
		Username:     u.Username,
		FullName:     u.FullName,
		ImageURL:     u.ImageURL,
		FollowerIDs:  u.FollowerIDs,
		FollowingIDs: u.FollowingIDs,
		Version:      u.Version,
		CreatedAt:    u.CreatedAt,
	}
}
