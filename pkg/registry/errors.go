package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGemNotFound       = errors.New("gem not found")
	ErrInvalidParameters = errors.New("invalid gem parameters")
	ErrPluginSymbol      = errors.New("plugin symbol does not implement protocol.Gem")
)

// ParameterError lists the schema violations of a parameter payload.
type ParameterError struct {
	Gem    string
	Issues []string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s for '%s': %s", ErrInvalidParameters, e.Gem, strings.Join(e.Issues, "; "))
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameters
}

// PluginError reports a gem plugin that could not be loaded.
type PluginError struct {
	Path string
	Err  error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("load gem plugin %s: %v", e.Path, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// IsGemNotFound checks if an error indicates an unknown gem.
func IsGemNotFound(err error) bool {
	return errors.Is(err, ErrGemNotFound)
}

// IsInvalidParameters checks if an error indicates parameters rejected by a gem schema.
func IsInvalidParameters(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}
