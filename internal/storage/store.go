// Package storage persists completed questionnaires and the set of users who submitted one.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/linzabot/core/logger"
	"github.com/m3rciful/linzabot/internal/metrics"
)

// QuestionCount is the number of answers in a questionnaire.
const QuestionCount = 5

// ErrAlreadySubmitted is returned when the user already has a recorded submission.
var ErrAlreadySubmitted = errors.New("storage: user already submitted the form")

// ResponseID identifies a stored questionnaire.
type ResponseID int64

// Response is a stored questionnaire row. It is intentionally not linked to a user.
type Response struct {
	ID ResponseID `db:"id"`
	Q1 *string    `db:"q1"`
	Q2 *string    `db:"q2"`
	Q3 *string    `db:"q3"`
	Q4 *string    `db:"q4"`
	Q5 *string    `db:"q5"`
}

// NewResponse maps answers to columns verbatim, the empty string included.
func NewResponse(answers [QuestionCount]string) Response {
	return Response{
		Q1: pointer.ToString(answers[0]),
		Q2: pointer.ToString(answers[1]),
		Q3: pointer.ToString(answers[2]),
		Q4: pointer.ToString(answers[3]),
		Q5: pointer.ToString(answers[4]),
	}
}

// Answers returns the row as plain strings, NULL becoming "".
func (r Response) Answers() [QuestionCount]string {
	return [QuestionCount]string{
		pointer.GetString(r.Q1),
		pointer.GetString(r.Q2),
		pointer.GetString(r.Q3),
		pointer.GetString(r.Q4),
		pointer.GetString(r.Q5),
	}
}

const (
	querySubmitted      = `SELECT EXISTS(SELECT 1 FROM submitted_users WHERE user_id = ?)`
	insertSubmittedUser = `INSERT INTO submitted_users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`
	insertResponse      = `INSERT INTO responses (q1, q2, q3, q4, q5) VALUES (?, ?, ?, ?, ?) RETURNING id`
)

// Store is the sqlx backed answer store.
type Store struct {
	db           *sqlx.DB
	writeTimeout time.Duration
}

// New wraps db. writeTimeout bounds every query, reads included since they queue
// behind writes on a single connection; zero disables the bound.
func New(db *sqlx.DB, writeTimeout time.Duration) *Store {
	return &Store{db: db, writeTimeout: writeTimeout}
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.writeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.writeTimeout)
}

// HasSubmitted reports whether userID already completed the questionnaire.
func (s *Store) HasSubmitted(ctx context.Context, userID int64) (bool, error) {
	defer metrics.ObserveStore("has_submitted", time.Now())

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var exists bool
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(querySubmitted), userID); err != nil {
		return false, fmt.Errorf("Store.HasSubmitted: %w", err)
	}
	return exists, nil
}

// RecordSubmission marks userID as submitted and stores answers in one transaction.
// It returns ErrAlreadySubmitted, leaving both tables untouched, when the user is
// already marked.
func (s *Store) RecordSubmission(ctx context.Context, userID int64, answers [QuestionCount]string) (ResponseID, error) {
	start := time.Now()
	defer metrics.ObserveStore("record_submission", start)

	id, err := s.recordSubmission(ctx, userID, answers)
	switch {
	case err == nil:
		metrics.Submissions.WithLabelValues(metrics.OutcomeOK).Inc()
		logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "store.submission",
			slog.String("status", "ok"),
			slog.Int64("response_id", int64(id)),
			slog.Duration("duration", time.Since(start)),
		)
	case errors.Is(err, ErrAlreadySubmitted):
		metrics.Submissions.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "store.submission",
			slog.String("status", "rejected"),
			slog.String("reason", "duplicate"),
		)
	default:
		metrics.Submissions.WithLabelValues(metrics.OutcomeError).Inc()
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "store.submission",
			slog.String("status", "fail"),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)
	}
	return id, err
}

func (s *Store) recordSubmission(ctx context.Context, userID int64, answers [QuestionCount]string) (ResponseID, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("Store.RecordSubmission: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(insertSubmittedUser), userID)
	if err != nil {
		return 0, fmt.Errorf("Store.RecordSubmission: mark user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Store.RecordSubmission: rows affected: %w", err)
	}
	if n == 0 {
		return 0, ErrAlreadySubmitted
	}

	row := NewResponse(answers)
	var id ResponseID
	err = tx.QueryRowxContext(ctx, tx.Rebind(insertResponse), row.Q1, row.Q2, row.Q3, row.Q4, row.Q5).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Store.RecordSubmission: insert response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("Store.RecordSubmission: commit: %w", err)
	}
	committed = true
	return id, nil
}
