package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository = (*Repository)(nil)
	_ repository.TeamRepository = (*Repository)(nil)
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, company_id, created_at`

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, company_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		emptyToNil(user.Phone),
		user.Role,
		emptyToNil(user.CompanyID),
		user.CreatedAt,
	)
	return translate(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanUser(row)
}

// ListUsersByCompany returns every account of the company.
func (r *Repository) ListUsersByCompany(ctx context.Context, companyID string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = $1 ORDER BY last_name, first_name, id`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateTeamLeader inserts a team leader.
func (r *Repository) CreateTeamLeader(ctx context.Context, leader *domain.TeamLeader) error {
	const query = `INSERT INTO team_leaders (id, company_id, user_id, first_name, last_name, color, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		leader.ID,
		leader.CompanyID,
		stringPtrToNil(leader.UserID),
		leader.FirstName,
		leader.LastName,
		leader.Color,
		leader.Capacity,
		leader.CreatedAt,
	)
	return translate(err)
}

// GetTeamLeader loads a team leader of the company.
func (r *Repository) GetTeamLeader(ctx context.Context, companyID, leaderID string) (*domain.TeamLeader, error) {
	const query = `SELECT id, company_id, user_id, first_name, last_name, color, capacity, created_at
		FROM team_leaders WHERE id = $1 AND company_id = $2`
	var leader domain.TeamLeader
	if err := r.pool.QueryRow(ctx, query, leaderID, companyID).Scan(
		&leader.ID,
		&leader.CompanyID,
		&leader.UserID,
		&leader.FirstName,
		&leader.LastName,
		&leader.Color,
		&leader.Capacity,
		&leader.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &leader, nil
}

// ListTeamLeaderStats returns leaders ordered by creation with their rosters.
func (r *Repository) ListTeamLeaderStats(ctx context.Context, companyID string) ([]domain.TeamLeaderStats, error) {
	const leadersQuery = `SELECT id, company_id, user_id, first_name, last_name, color, capacity, created_at
		FROM team_leaders WHERE company_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, leadersQuery, companyID)
	if err != nil {
		return nil, err
	}
	stats := make([]domain.TeamLeaderStats, 0)
	index := make(map[string]int)
	for rows.Next() {
		var leader domain.TeamLeader
		if err := rows.Scan(
			&leader.ID,
			&leader.CompanyID,
			&leader.UserID,
			&leader.FirstName,
			&leader.LastName,
			&leader.Color,
			&leader.Capacity,
			&leader.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		index[leader.ID] = len(stats)
		stats = append(stats, domain.TeamLeaderStats{TeamLeader: leader, Collaborators: make([]domain.User, 0)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const membersQuery = `SELECT a.team_leader_id, u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone, u.role, u.company_id, u.created_at
		FROM team_assignments a
		INNER JOIN team_leaders l ON l.id = a.team_leader_id
		INNER JOIN users u ON u.id = a.collaborator_id
		WHERE l.company_id = $1
		ORDER BY a.assigned_at ASC, u.id ASC`
	memberRows, err := r.pool.Query(ctx, membersQuery, companyID)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var (
			leaderID string
			u        domain.User
			phone    *string
			company  *string
		)
		if err := memberRows.Scan(&leaderID, &u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone, &u.Role, &company, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Phone = derefString(phone)
		u.CompanyID = derefString(company)
		if pos, ok := index[leaderID]; ok {
			stats[pos].Collaborators = append(stats[pos].Collaborators, u)
		}
	}
	return stats, memberRows.Err()
}

// AssignCollaborator performs the capacity compare-and-swap inside one
// transaction. The leader row lock serialises concurrent assigns to a roster.
func (r *Repository) AssignCollaborator(ctx context.Context, companyID string, assignment *domain.Assignment) error {
	if assignment == nil {
		return repository.ErrInvalidArgument
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	capacity, err := lockLeader(ctx, tx, companyID, assignment.TeamLeaderID)
	if err != nil {
		return err
	}
	if err := ensureCollaborator(ctx, tx, companyID, assignment.CollaboratorID); err != nil {
		return err
	}

	var current string
	err = tx.QueryRow(ctx, `SELECT team_leader_id FROM team_assignments WHERE collaborator_id = $1`, assignment.CollaboratorID).Scan(&current)
	switch {
	case err == nil:
		return repository.ErrAlreadyAssigned
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	count, err := rosterSize(ctx, tx, assignment.TeamLeaderID)
	if err != nil {
		return err
	}
	if count >= capacity {
		return repository.ErrRosterFull
	}

	const insert = `INSERT INTO team_assignments (collaborator_id, team_leader_id, notes, assigned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collaborator_id) DO NOTHING`
	tag, err := tx.Exec(ctx, insert, assignment.CollaboratorID, assignment.TeamLeaderID, assignment.Notes, assignment.AssignedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrAlreadyAssigned
	}
	return tx.Commit(ctx)
}

// ReassignCollaborator moves a collaborator between two rosters of the same
// company. Both leader rows are locked in id order to avoid deadlocks.
func (r *Repository) ReassignCollaborator(ctx context.Context, companyID, collaboratorID, fromLeaderID, toLeaderID string) (*domain.Assignment, error) {
	if fromLeaderID == toLeaderID {
		return nil, repository.ErrInvalidArgument
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const lock = `SELECT id, capacity FROM team_leaders
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`
	rows, err := tx.Query(ctx, lock, companyID, []string{fromLeaderID, toLeaderID})
	if err != nil {
		return nil, err
	}
	capacities := make(map[string]int, 2)
	for rows.Next() {
		var (
			id       string
			capacity int
		)
		if err := rows.Scan(&id, &capacity); err != nil {
			rows.Close()
			return nil, err
		}
		capacities[id] = capacity
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(capacities) != 2 {
		return nil, repository.ErrNotFound
	}

	count, err := rosterSize(ctx, tx, toLeaderID)
	if err != nil {
		return nil, err
	}
	if count >= capacities[toLeaderID] {
		return nil, repository.ErrRosterFull
	}

	const move = `UPDATE team_assignments SET team_leader_id = $1, assigned_at = NOW()
		WHERE collaborator_id = $2 AND team_leader_id = $3
		RETURNING notes, assigned_at`
	assignment := &domain.Assignment{TeamLeaderID: toLeaderID, CollaboratorID: collaboratorID}
	if err := tx.QueryRow(ctx, move, toLeaderID, collaboratorID, fromLeaderID).Scan(&assignment.Notes, &assignment.AssignedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return assignment, nil
}

// RemoveCollaborator deletes a roster membership.
func (r *Repository) RemoveCollaborator(ctx context.Context, companyID, leaderID, collaboratorID string) error {
	const query = `DELETE FROM team_assignments a
		USING team_leaders l
		WHERE a.team_leader_id = l.id
			AND l.company_id = $1
			AND a.team_leader_id = $2
			AND a.collaborator_id = $3`
	tag, err := r.pool.Exec(ctx, query, companyID, leaderID, collaboratorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteTeamLeader removes a leader; its assignments cascade.
func (r *Repository) DeleteTeamLeader(ctx context.Context, companyID, leaderID string) ([]string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockLeader(ctx, tx, companyID, leaderID); err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT collaborator_id FROM team_assignments WHERE team_leader_id = $1 ORDER BY assigned_at, collaborator_id`, leaderID)
	if err != nil {
		return nil, err
	}
	released := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		released = append(released, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM team_leaders WHERE id = $1 AND company_id = $2`, leaderID, companyID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return released, nil
}

func lockLeader(ctx context.Context, tx pgx.Tx, companyID, leaderID string) (int, error) {
	var capacity int
	err := tx.QueryRow(ctx, `SELECT capacity FROM team_leaders WHERE id = $1 AND company_id = $2 FOR UPDATE`, leaderID, companyID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return capacity, nil
}

func ensureCollaborator(ctx context.Context, tx pgx.Tx, companyID, collaboratorID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND company_id = $2)`, collaboratorID, companyID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return nil
}

func rosterSize(ctx context.Context, tx pgx.Tx, leaderID string) (int, error) {
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM team_assignments WHERE team_leader_id = $1`, leaderID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u       domain.User
		phone   *string
		company *string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone, &u.Role, &company, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Phone = derefString(phone)
	u.CompanyID = derefString(company)
	return &u, nil
}

// translate maps constraint violations onto repository errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrDuplicate
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func emptyToNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func stringPtrToNil(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
