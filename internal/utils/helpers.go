package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/senyabanana/tender-orchestrator/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	SendError(w, models.NewErrorResponse(statusCode, message))
}

// SendError отправляет ошибку движка в формате JSON
func SendError(w http.ResponseWriter, errResp *models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errResp.StatusCode)
	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		log.Println(err)
	}
}

// SendJSON отправляет успешный ответ в формате JSON
func SendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// CheckUserExists проверяет, существует ли пользователь с указанным username
func CheckUserExists(ctx context.Context, dbPool *pgxpool.Pool, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM employee WHERE username = $1)`
	err := dbPool.QueryRow(ctx, query, username).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CheckUserResponsibleForEntity проверяет, является ли пользователь ответственным за тендеры заказчика
func CheckUserResponsibleForEntity(ctx context.Context, dbPool *pgxpool.Pool, username, entityId string) (bool, error) {
	var isResponsible bool
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM entity_responsible er
			JOIN employee e ON er.user_id = e.id
			WHERE e.username = $1 AND er.entity_id = $2
		)`
	err := dbPool.QueryRow(ctx, query, username, entityId).Scan(&isResponsible)
	if err != nil {
		return false, err
	}
	return isResponsible, nil
}

// CheckUserIsProvider проверяет, представляет ли пользователь какого-либо поставщика
func CheckUserIsProvider(ctx context.Context, dbPool *pgxpool.Pool, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM provider_user WHERE username = $1)`
	err := dbPool.QueryRow(ctx, query, username).Scan(&exists)
	return exists, err
}

// Contains - функция для проверки вхождения значения в срез
func Contains[T comparable](values []T, v T) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// Intersects проверяет, есть ли у срезов общий элемент
func Intersects[T comparable](a, b []T) bool {
	for _, v := range a {
		if Contains(b, v) {
			return true
		}
	}
	return false
}
