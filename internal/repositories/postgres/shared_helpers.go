package postgres

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

const pgUniqueViolation = "23505"

// translateError maps driver errors onto repository sentinels
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, repositories.ErrDuplicateKey)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// isUniqueViolation detects SQLSTATE 23505 whether or not gorm translated it
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqlStateErr interface{ SQLState() string }
	if errors.As(err, &sqlStateErr) {
		return sqlStateErr.SQLState() == pgUniqueViolation
	}
	return false
}

// advisoryKey folds a candidate/template pair into a pg_advisory_xact_lock key
func advisoryKey(candidateID, templateID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(candidateID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(templateID))
	return int64(h.Sum64())
}
