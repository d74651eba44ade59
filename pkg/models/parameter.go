package models

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// MacroParameter is one named string value of a persisted gem configuration.
type MacroParameter struct {
	Name  string `json:"name"  validate:"required"`
	Value string `json:"value"`
}

// MacroProperties is the persisted configuration of a macro-based gem.
type MacroProperties struct {
	MacroName   string           `json:"macroName"`
	ProjectName string           `json:"projectName"`
	Parameters  []MacroParameter `json:"parameters" validate:"dive"`
}

// ParameterMap indexes parameters by name. Later duplicates win.
func (p MacroProperties) ParameterMap() map[string]string {
	values := make(map[string]string, len(p.Parameters))
	for _, param := range p.Parameters {
		values[param.Name] = param.Value
	}

	return values
}

// Fingerprint returns a stable hash of the macro name and ordered parameters.
func (p MacroProperties) Fingerprint() string {
	hasher := xxh3.New()

	write := func(s string) {
		_, _ = hasher.WriteString(strconv.Itoa(len(s)))
		_, _ = hasher.WriteString(":")
		_, _ = hasher.WriteString(s)
	}

	write(p.MacroName)
	write(p.ProjectName)

	for _, param := range p.Parameters {
		write(param.Name)
		write(param.Value)
	}

	return strconv.FormatUint(hasher.Sum64(), 16)
}
