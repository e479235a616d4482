package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflict")
	ErrSpecUnavailable   = errors.New("parent job has no saved spec")
	ErrNoArtifacts       = errors.New("no artifacts")
	ErrArtifactMissing   = errors.New("artifact missing on disk")
	ErrDuplicateAccount  = errors.New("account already exists")
	ErrInvalidCredential = errors.New("invalid credentials")
)
