package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/repository"
)

const uniqueViolation = "23505"

type pgPaymentAttemptRepository struct {
	db *sql.DB
}

func NewPgPaymentAttemptRepository(db *sql.DB) repository.PaymentAttemptRepository {
	return &pgPaymentAttemptRepository{db: db}
}

const attemptColumns = `id, checkout_id, booking_id, amount, payment_method, outcome, transaction_id, message, created_at`

func (r *pgPaymentAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) (*domain.PaymentAttempt, error) {
	query := `INSERT INTO payment_attempts (checkout_id, booking_id, amount, payment_method, outcome, transaction_id, message, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := r.db.QueryRowContext(ctx, query,
		attempt.CheckoutID, attempt.BookingID, attempt.Amount, string(attempt.Method),
		string(attempt.Outcome), attempt.TransactionID, attempt.Message, createdAt,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: transaction '%s' already recorded", repository.ErrDuplicateEntry, attempt.TransactionID.String)
		}
		return nil, fmt.Errorf("PaymentAttemptRepository.Create: %w", err)
	}
	attempt.CreatedAt = attempt.CreatedAt.In(time.UTC)
	return attempt, nil
}

func (r *pgPaymentAttemptRepository) FindByCheckoutID(ctx context.Context, checkoutID string) ([]domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE checkout_id = $1 ORDER BY created_at ASC, id ASC`
	attempts, err := r.query(ctx, query, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("PaymentAttemptRepository.FindByCheckoutID: %w", err)
	}
	return attempts, nil
}

func (r *pgPaymentAttemptRepository) FindByBookingID(ctx context.Context, bookingID int64) ([]domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE booking_id = $1 ORDER BY created_at ASC, id ASC`
	attempts, err := r.query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("PaymentAttemptRepository.FindByBookingID: %w", err)
	}
	return attempts, nil
}

func (r *pgPaymentAttemptRepository) FindSucceededByBookingID(ctx context.Context, bookingID int64) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts
	          WHERE booking_id = $1 AND outcome = $2
	          ORDER BY created_at DESC LIMIT 1`
	var a domain.PaymentAttempt
	err := scanAttempt(r.db.QueryRowContext(ctx, query, bookingID, string(domain.OutcomeSucceeded)), &a)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PaymentAttemptRepository.FindSucceededByBookingID: %w", err)
	}
	return &a, nil
}

func (r *pgPaymentAttemptRepository) query(ctx context.Context, query string, args ...any) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []domain.PaymentAttempt{}
	for rows.Next() {
		var a domain.PaymentAttempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner, a *domain.PaymentAttempt) error {
	var method, outcome string
	if err := row.Scan(&a.ID, &a.CheckoutID, &a.BookingID, &a.Amount, &method, &outcome, &a.TransactionID, &a.Message, &a.CreatedAt); err != nil {
		return err
	}
	a.Method = domain.PaymentMethod(method)
	a.Outcome = domain.PaymentOutcome(outcome)
	a.CreatedAt = a.CreatedAt.In(time.UTC)
	return nil
}

// isUniqueViolation understands both the pgx and the lib/pq error types.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
