package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/marksvault/internal/engine"
	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/store"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

// translate maps lower-layer sentinels onto the API error taxonomy. message describes
// the failed operation and is used when nothing more specific is known.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, store.ErrLocked):
		return appErrors.Clone(appErrors.ErrLocked, "")
	case errors.Is(err, store.ErrWrongPassphrase):
		return appErrors.Wrap(err, appErrors.ErrCrypto.Code, appErrors.ErrCrypto.Status, "current passphrase is incorrect")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, message+": not found")
	case errors.Is(err, engine.ErrReference):
		return appErrors.Wrap(err, appErrors.ErrReference.Code, appErrors.ErrReference.Status, err.Error())
	case errors.Is(err, engine.ErrPolicy):
		return appErrors.Wrap(err, appErrors.ErrPolicy.Code, appErrors.ErrPolicy.Status, err.Error())
	case errors.Is(err, models.ErrInvalidAcademicYear):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	case errors.Is(err, store.ErrStore):
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

// diagnosticCode maps a unit failure onto the code reported in ingestion results.
func diagnosticCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrPolicy):
		return models.DiagnosticPolicy
	case errors.Is(err, engine.ErrReference):
		return models.DiagnosticReference
	case errors.Is(err, models.ErrInvalidAcademicYear):
		return models.DiagnosticValidation
	default:
		return appErrors.ErrStore.Code
	}
}
