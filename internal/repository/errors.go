package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound - запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrStaleVersion - запись изменена другим запросом.
	ErrStaleVersion = errors.New("stale record version")
	// ErrDuplicate - нарушено ограничение уникальности.
	ErrDuplicate = errors.New("duplicate record")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isMalformedID сообщает, что идентификатор не разобран как UUID.
// Такая запись заведомо не существует.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
