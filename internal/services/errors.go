package services

import (
	"context"
	"errors"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
)

// storageError переводит ошибку хранилища в класс ошибки движка.
// Таймаут и прочие сбои хранилища считаются недоступностью коллаборатора.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var engineErr *models.EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	var errResp *models.ErrorResponse
	if errors.As(err, &errResp) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return models.NewEngineError(models.KindNotFound, "", "%s: not found", op)
	case errors.Is(err, repository.ErrStaleVersion):
		return models.NewEngineError(models.KindConcurrentModification, "", "%s: bid was modified concurrently", op).Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewEngineError(models.KindCollaboratorUnavailable, "", "%s: storage timeout", op).Wrap(err)
	default:
		return models.NewEngineError(models.KindCollaboratorUnavailable, "", "%s: storage failure", op).Wrap(err)
	}
}

func lockError(key string, err error) error {
	return models.NewEngineError(models.KindConcurrentModification, "", "resource %s is busy", key).Wrap(err)
}
