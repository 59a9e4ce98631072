package service

import "errors"

var (
	ErrInvalidChapter      = errors.New("invalid chapter index")
	ErrChoiceNotFound      = errors.New("choice not found in chapter")
	ErrSessionNotFound     = errors.New("reader session not found")
	ErrTransitionAborted   = errors.New("transition superseded by a reload")
	ErrPathNotReproducible = errors.New("saved path cannot be replayed")
	ErrPlaceholderState    = errors.New("placeholder is neither resolved nor writable")
)
