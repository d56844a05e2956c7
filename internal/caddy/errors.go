package caddy

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateMissing matches errors from reading a stub template.
	ErrTemplateMissing = errors.New("template missing")

	// ErrPathResolution is returned by New when the unit path lookup fails.
	ErrPathResolution = errors.New("cannot resolve daemon unit path")
)

// TemplateError reports a stub template that could not be read.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("reading template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTemplateMissing) hold for any TemplateError.
func (e *TemplateError) Is(target error) bool {
	return target == ErrTemplateMissing
}
