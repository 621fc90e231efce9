package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

const pgUniqueViolation = "23505"

// Postgres is the durable Store, AuditSink and user repository.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("module", "store.postgres").Msg("connected to database")
	return &Postgres{pool: pool}, nil
}

func (db *Postgres) Close() { db.pool.Close() }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (db *Postgres) CreateRoom(ctx context.Context, room *domain.Room) error {
	seats, err := json.Marshal(room.Seats)
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	query := `
		INSERT INTO rooms (id, title, description, host_id, room_type, status, capacity, seats, last_seq, created_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = db.pool.Exec(ctx, query,
		room.ID, room.Title, room.Description, room.HostID, room.Type,
		room.Status, room.Capacity, seats, room.LastSeq, room.CreatedAt, room.ClosedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("room %s exists: %w", room.ID, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (db *Postgres) LoadRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	query := `
		SELECT id, title, description, host_id, room_type, status, capacity, seats, last_seq, created_at, closed_at
		FROM rooms WHERE id = $1`
	room := &domain.Room{}
	var seats []byte
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Title, &room.Description, &room.HostID, &room.Type,
		&room.Status, &room.Capacity, &seats, &room.LastSeq, &room.CreatedAt, &room.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select room: %w", err)
	}
	if err := json.Unmarshal(seats, &room.Seats); err != nil {
		return nil, fmt.Errorf("decode seats: %w", err)
	}
	return room, nil
}

func (db *Postgres) SaveRoom(ctx context.Context, room *domain.Room) error {
	seats, err := json.Marshal(room.Seats)
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	query := `
		UPDATE rooms
		SET title = $2, description = $3, status = $4, seats = $5, last_seq = $6, closed_at = $7
		WHERE id = $1`
	tag, err := db.pool.Exec(ctx, query,
		room.ID, room.Title, room.Description, room.Status, seats, room.LastSeq, room.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", room.ID, core.ErrNotFound)
	}
	return nil
}

func (db *Postgres) ListRooms(ctx context.Context, f core.RoomFilter) ([]domain.Room, int, error) {
	// The total is counted separately so a page past the end still reports
	// the true collection size instead of zero.
	where := ""
	countArgs := []any{}
	args := []any{f.Limit, f.Page * f.Limit}
	if f.Status != "" {
		where = "WHERE status = $1"
		countArgs = append(countArgs, f.Status)
		args = append(args, f.Status)
	}

	total := 0
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM rooms %s`, where)
	if err := db.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	pageWhere := ""
	if f.Status != "" {
		pageWhere = "WHERE status = $3"
	}
	query := fmt.Sprintf(`
		SELECT id, title, description, host_id, room_type, status, capacity, seats, last_seq, created_at, closed_at
		FROM rooms %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, pageWhere)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var room domain.Room
		var seats []byte
		if err := rows.Scan(
			&room.ID, &room.Title, &room.Description, &room.HostID, &room.Type,
			&room.Status, &room.Capacity, &seats, &room.LastSeq, &room.CreatedAt, &room.ClosedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan room: %w", err)
		}
		if err := json.Unmarshal(seats, &room.Seats); err != nil {
			return nil, 0, fmt.Errorf("decode seats: %w", err)
		}
		out = append(out, room)
	}
	return out, total, rows.Err()
}

func (db *Postgres) FindParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error) {
	query := `
		SELECT room_id, user_id, display_name, role, joined_at, left_at
		FROM participants WHERE room_id = $1 AND user_id = $2`
	p := &domain.Participant{}
	err := db.pool.QueryRow(ctx, query, roomID, userID).Scan(
		&p.RoomID, &p.UserID, &p.DisplayName, &p.Role, &p.JoinedAt, &p.LeftAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("participant %s in room %s: %w", userID, roomID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select participant: %w", err)
	}
	return p, nil
}

func (db *Postgres) ListParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	query := `
		SELECT room_id, user_id, display_name, role, joined_at, left_at
		FROM participants WHERE room_id = $1
		ORDER BY joined_at`
	rows, err := db.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.DisplayName, &p.Role, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *Postgres) UpsertParticipant(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO participants (room_id, user_id, display_name, role, joined_at, left_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, role = EXCLUDED.role,
		    joined_at = EXCLUDED.joined_at, left_at = EXCLUDED.left_at`
	_, err := db.pool.Exec(ctx, query, p.RoomID, p.UserID, p.DisplayName, p.Role, p.JoinedAt, p.LeftAt)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (db *Postgres) DeleteParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// Append writes one audit row. The primary key (room_id, seq) absorbs
// at-least-once redelivery.
func (db *Postgres) Append(ctx context.Context, ev domain.StateChangeEvent) error {
	payload, err := json.Marshal(ev.Room)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	query := `
		INSERT INTO audit_log (room_id, seq, action, actor_id, affected_id, seat_index, payload, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, seq) DO NOTHING`
	_, err = db.pool.Exec(ctx, query,
		ev.RoomID, ev.Seq, ev.Kind, ev.ActorID, ev.AffectedID, ev.SeatIndex, payload, ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := db.pool.Exec(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %s taken: %w", u.Email, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (db *Postgres) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`
	u := &domain.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (db *Postgres) FindUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`
	u := &domain.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}
