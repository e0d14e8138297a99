package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gps-chat/internal/models"
	"gps-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised when an insert hits a unique index.
const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// User Repository Implementation

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, is_admin, is_approved, created_at FROM users WHERE username = $1`

	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.IsApproved, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	// New accounts stay unapproved until an administrator confirms them.
	query := `
		INSERT INTO users (username, password_hash, is_approved, is_admin, created_at)
		VALUES ($1, $2, FALSE, FALSE, NOW())
		RETURNING id, username, is_admin, is_approved, created_at`

	user := &models.User{PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx, query, username, passwordHash).Scan(
		&user.ID, &user.Username, &user.IsAdmin, &user.IsApproved, &user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateUsername
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *PostgresStore) LookupUsername(ctx context.Context, userID int) (string, error) {
	var username string
	err := s.pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return username, nil
}

// Room Repository Implementation

func (s *PostgresStore) FindPrivateRoom(ctx context.Context, userA, userB int) (int, error) {
	query := `
		SELECT rp1.room_id FROM room_participants rp1
		JOIN room_participants rp2 ON rp1.room_id = rp2.room_id
		JOIN chat_rooms cr ON cr.id = rp1.room_id
		WHERE rp1.user_id = $1 AND rp2.user_id = $2 AND cr.is_public = FALSE`

	var roomID int
	err := s.pool.QueryRow(ctx, query, userA, userB).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return roomID, nil
}

func (s *PostgresStore) CreatePrivateRoom(ctx context.Context, userA, userB int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// The unique pair_key index arbitrates concurrent creation: the loser
	// of the race gets no row back and reads the winner's id instead.
	pairKey := privatePairKey(userA, userB)

	var roomID int
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (is_public, pair_key, created_at)
		VALUES (FALSE, $1, NOW())
		ON CONFLICT (pair_key) DO NOTHING
		RETURNING id`, pairKey).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := tx.QueryRow(ctx,
			`SELECT id FROM chat_rooms WHERE pair_key = $1`, pairKey).Scan(&roomID); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2), ($1, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userA, userB); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return roomID, nil
}

func (s *PostgresStore) IsParticipant(ctx context.Context, roomID, userID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2)`

	var exists bool
	err := s.pool.QueryRow(ctx, query, roomID, userID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ParticipantsOf(ctx context.Context, roomID int) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM room_participants WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []int
	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		participants = append(participants, userID)
	}

	return participants, rows.Err()
}

// Message Repository Implementation

func (s *PostgresStore) InsertMessage(ctx context.Context, roomID, senderID int, content string) (int, time.Time, error) {
	query := `
		INSERT INTO messages (sender_id, room_id, content, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at`

	var id int
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, query, senderID, roomID, content).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

func (s *PostgresStore) RoomMessages(ctx context.Context, roomID int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.content, m.created_at, u.id, u.username
		FROM messages m JOIN users u ON m.sender_id = u.id
		WHERE m.room_id = $1 ORDER BY m.created_at ASC`

	rows, err := s.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Content, &msg.CreatedAt, &msg.SenderID, &msg.SenderUsername); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func privatePairKey(userA, userB int) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
