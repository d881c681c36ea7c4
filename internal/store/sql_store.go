package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SQLStore is the catalog store over Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

var positionalParam = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to ?N for sqlite.
func rebind(dialect, query string) string {
	if dialect != DialectSQLite {
		return query
	}
	return positionalParam.ReplaceAllString(query, "?$1")
}

func (s *SQLStore) q(query string) string {
	return rebind(s.dialect, query)
}

func (s *SQLStore) EnsureUser(ctx context.Context, userID int64, username, defaultRole string) (User, error) {
	const upsert = `
		INSERT INTO users (user_id, username, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
			SET username = CASE WHEN EXCLUDED.username = '' THEN users.username ELSE EXCLUDED.username END
		RETURNING user_id, username, role, joined_at
	`
	var user User
	err := s.db.QueryRowContext(ctx, s.q(upsert), userID, username, defaultRole, s.now()).
		Scan(&user.ID, &user.Username, &user.Role, &user.JoinedAt)
	if err != nil {
		return User{}, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

func (s *SQLStore) GetUser(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, s.q(`SELECT user_id, username, role, joined_at FROM users WHERE user_id=$1`), userID).
		Scan(&user.ID, &user.Username, &user.Role, &user.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *SQLStore) GetRole(ctx context.Context, userID int64) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT role FROM users WHERE user_id=$1`), userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read role: %w", err)
	}
	return role, nil
}

func (s *SQLStore) SetRole(ctx context.Context, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (user_id, role, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role
	`), userID, role, s.now())
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

const movieColumns = `id, title, year, quality, language, size, link, media_ref, uploader_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (Movie, error) {
	var item Movie
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Year,
		&item.Quality,
		&item.Language,
		&item.Size,
		&item.Link,
		&item.MediaRef,
		&item.UploaderID,
		&item.CreatedAt,
	)
	return item, err
}

func (s *SQLStore) InsertMovie(ctx context.Context, item Movie) (Movie, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO movies (title, year, quality, language, size, link, media_ref, uploader_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`), item.Title, item.Year, item.Quality, item.Language, item.Size, item.Link, item.MediaRef, item.UploaderID, item.CreatedAt).Scan(&item.ID)
	if err != nil {
		return Movie{}, fmt.Errorf("insert movie: %w", err)
	}
	return item, nil
}

// ListMovies returns the newest entries first; limit <= 0 returns all of them.
func (s *SQLStore) ListMovies(ctx context.Context, limit int) ([]Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryMovies(ctx, "list movies", s.q(query), args...)
}

// SearchMoviesByTitle matches a case-insensitive substring of the title, newest first.
func (s *SQLStore) SearchMoviesByTitle(ctx context.Context, substring string, limit int) ([]Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE ` + s.lower("title") + ` LIKE $1 ESCAPE '\' ORDER BY id DESC`
	args := []any{likePattern(substring)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryMovies(ctx, "search movies", s.q(query), args...)
}

func (s *SQLStore) lower(column string) string {
	if s.dialect == DialectSQLite {
		return sqliteLower + "(" + column + ")"
	}
	return "LOWER(" + column + ")"
}

func likePattern(substring string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(substring))
	return "%" + escaped + "%"
}

func (s *SQLStore) queryMovies(ctx context.Context, op, query string, args ...any) ([]Movie, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]Movie, 0)
	for rows.Next() {
		item, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return items, nil
}

func (s *SQLStore) GetMovie(ctx context.Context, movieID int64) (Movie, error) {
	item, err := scanMovie(s.db.QueryRowContext(ctx, s.q(`SELECT `+movieColumns+` FROM movies WHERE id=$1`), movieID))
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, ErrNotFound
	}
	if err != nil {
		return Movie{}, fmt.Errorf("get movie: %w", err)
	}
	return item, nil
}

func (s *SQLStore) DeleteMovie(ctx context.Context, movieID int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM movies WHERE id=$1`), movieID)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantAgent sets role=agent and records the grant in one transaction.
// Re-granting an existing agent refreshes granted_by.
func (s *SQLStore) GrantAgent(ctx context.Context, agentID, grantedBy int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grant agent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var role string
	err = tx.QueryRowContext(ctx, s.q(`SELECT role FROM users WHERE user_id=$1`), agentID).Scan(&role)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read role: %w", err)
	}
	if role == "admin" {
		return ErrAdminRole
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO users (user_id, role, joined_at)
		VALUES ($1, 'agent', $2)
		ON CONFLICT (user_id) DO UPDATE SET role = 'agent'
	`), agentID, now); err != nil {
		return fmt.Errorf("promote agent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO agents (agent_id, granted_by, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO UPDATE SET granted_by = EXCLUDED.granted_by
	`), agentID, grantedBy, now); err != nil {
		return fmt.Errorf("record agent grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grant agent: %w", err)
	}
	return nil
}

// RevokeAgent demotes an agent back to user and drops the grant.
// It reports whether anything changed; revoking a non-agent is a no-op.
func (s *SQLStore) RevokeAgent(ctx context.Context, agentID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin revoke agent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.q(`UPDATE users SET role='user' WHERE user_id=$1 AND role='agent'`), agentID)
	if err != nil {
		return false, fmt.Errorf("demote agent: %w", err)
	}
	demoted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("demote agent: %w", err)
	}
	res, err = tx.ExecContext(ctx, s.q(`DELETE FROM agents WHERE agent_id=$1`), agentID)
	if err != nil {
		return false, fmt.Errorf("delete agent grant: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete agent grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit revoke agent: %w", err)
	}
	return demoted > 0 || deleted > 0, nil
}

const agentQuery = `
	SELECT a.agent_id, COALESCE(u.username, ''), a.granted_by, a.granted_at
	FROM agents a
	LEFT JOIN users u ON u.user_id = a.agent_id
`

func (s *SQLStore) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, agentQuery+` ORDER BY a.granted_at DESC, a.agent_id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	items := make([]Agent, 0)
	for rows.Next() {
		var item Agent
		if err := rows.Scan(&item.AgentID, &item.Username, &item.GrantedBy, &item.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return items, nil
}

func (s *SQLStore) GetAgent(ctx context.Context, agentID int64) (Agent, error) {
	var item Agent
	err := s.db.QueryRowContext(ctx, s.q(agentQuery+` WHERE a.agent_id=$1`), agentID).
		Scan(&item.AgentID, &item.Username, &item.GrantedBy, &item.GrantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return item, nil
}

func (s *SQLStore) InsertRequest(ctx context.Context, item Request) (Request, error) {
	if item.Status == "" {
		item.Status = RequestPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO requests (requester_id, query_text, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`), item.RequesterID, item.Query, item.Status, item.CreatedAt).Scan(&item.ID)
	if err != nil {
		return Request{}, fmt.Errorf("insert request: %w", err)
	}
	return item, nil
}

func (s *SQLStore) ListRequestsByUser(ctx context.Context, userID int64) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, requester_id, query_text, status, created_at
		FROM requests
		WHERE requester_id=$1
		ORDER BY id DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	items := make([]Request, 0)
	for rows.Next() {
		var item Request
		if err := rows.Scan(&item.ID, &item.RequesterID, &item.Query, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return items, nil
}

func (s *SQLStore) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "count users", `SELECT COUNT(*) FROM users`)
}

func (s *SQLStore) CountMovies(ctx context.Context) (int, error) {
	return s.count(ctx, "count movies", `SELECT COUNT(*) FROM movies`)
}

func (s *SQLStore) CountAgents(ctx context.Context) (int, error) {
	return s.count(ctx, "count agents", `SELECT COUNT(*) FROM agents`)
}

func (s *SQLStore) CountPendingRequests(ctx context.Context) (int, error) {
	return s.count(ctx, "count pending requests", `SELECT COUNT(*) FROM requests WHERE status='pending'`)
}

func (s *SQLStore) count(ctx context.Context, op, query string) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// Ping verifies the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
