package services

import (
	"errors"
	"fmt"

	"hearth/internal/extract"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyOwned       = errors.New("badge already owned")
	ErrNotOwned           = errors.New("badge not owned")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNotParticipant     = errors.New("not a participant of this room")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrAlreadyIngested    = errors.New("url already ingested")
	ErrTooLarge           = errors.New("payload too large")
	ErrEmptyDocument      = extract.ErrEmptyDocument

	ErrMuted  = fmt.Errorf("%w: user is muted", ErrForbidden)
	ErrBanned = fmt.Errorf("%w: user is banned", ErrForbidden)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// conflictOnDuplicate 并发写入撞上唯一索引时转成 ErrConflict，需要 TranslateError
func conflictOnDuplicate(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return err
}
