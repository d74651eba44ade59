// Package registry keeps the gems known to a process and validates parameter payloads against them.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"slices"
	"sort"
	"strings"

	"github.com/dukex/sqlgems/pkg/gems/bre"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// pluginSymbol is the exported variable a gem plugin must provide.
const pluginSymbol = "Gem"

type Registry struct {
	logger *slog.Logger
	gems   map[string]protocol.Gem
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log,
		gems:   make(map[string]protocol.Gem),
	}
}

// RegisterGem adds gem, replacing any gem registered under the same name.
func (r *Registry) RegisterGem(gem protocol.Gem) {
	if _, exists := r.gems[gem.Name()]; exists {
		r.logger.Warn("Replacing registered gem", "gem", gem.Name())
	}

	r.gems[gem.Name()] = gem
}

// RegisterDefaultGems registers the built-in gems.
func (r *Registry) RegisterDefaultGems() {
	r.RegisterGem(bre.NewGem())
}

// HealthCheck reports whether any gem is registered.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.gems) == 0 {
		return "No gems registered", false
	}

	return fmt.Sprintf("%d gem(s) registered", len(r.gems)), true
}

// Gem returns the gem registered under name.
func (r *Registry) Gem(name string) (protocol.Gem, error) {
	gem, ok := r.gems[name]
	if !ok {
		return nil, fmt.Errorf("gem '%s': %w", name, ErrGemNotFound)
	}

	return gem, nil
}

// Names returns the registered gem names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gems))
	for name := range r.gems {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// List describes every registered gem, ordered by name.
func (r *Registry) List() []models.RegisteredGem {
	names := r.Names()
	gems := make([]models.RegisteredGem, 0, len(names))

	for _, name := range names {
		gem := r.gems[name]
		gems = append(gems, models.RegisteredGem{
			Name:        gem.Name(),
			ProjectName: gem.ProjectName(),
			Category:    gem.Category(),
			Description: gem.Description(),
			Schema:      gem.ParameterSchema(),
		})
	}

	return gems
}

// ValidateParameters checks params against the parameter schema of the named gem.
// Parameters are validated as a JSON object keyed by name; later duplicates win.
func (r *Registry) ValidateParameters(name string, params []models.MacroParameter) error {
	gem, err := r.Gem(name)
	if err != nil {
		return err
	}

	parameterSchema := gem.ParameterSchema()
	if parameterSchema == nil {
		return nil
	}

	document := make(map[string]any, len(params))
	for key, value := range (models.MacroProperties{Parameters: params}).ParameterMap() {
		document[key] = value
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(parameterSchema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("validate parameters of gem '%s': %w", name, err)
	}

	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		issues = append(issues, resultErr.String())
	}

	sort.Strings(issues)

	return &ParameterError{Gem: name, Issues: issues}
}

// LoadGemPlugins opens every *.so under pluginsPath/gems and returns the gems they export.
// A missing plugin directory yields no gems.
func (r *Registry) LoadGemPlugins(pluginsPath string) ([]protocol.Gem, error) {
	rootPath := filepath.Join(pluginsPath, strings.ToLower(pluginSymbol)+"s")

	l := r.logger.With(slog.String("path", rootPath))

	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		l.Debug("No gem plugin directory")

		return nil, nil
	}

	var pluginPaths []string

	err := filepath.WalkDir(rootPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() && filepath.Ext(path) == ".so" {
			pluginPaths = append(pluginPaths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan gem plugins: %w", err)
	}

	slices.Sort(pluginPaths)

	l.Info("Loading gem plugins", "count", len(pluginPaths))

	gems := make([]protocol.Gem, 0, len(pluginPaths))

	for _, path := range pluginPaths {
		gem, err := openGemPlugin(path)
		if err != nil {
			return nil, err
		}

		gems = append(gems, gem)

		l.Info("Loaded gem plugin", slog.String("plugin", path), slog.String("gem", gem.Name()))
	}

	return gems, nil
}

func openGemPlugin(path string) (protocol.Gem, error) {
	plg, err := plugin.Open(path)
	if err != nil {
		return nil, &PluginError{Path: path, Err: err}
	}

	symbol, err := plg.Lookup(pluginSymbol)
	if err != nil {
		return nil, &PluginError{Path: path, Err: err}
	}

	// Lookup returns a pointer to exported variables.
	switch gem := symbol.(type) {
	case protocol.Gem:
		return gem, nil
	case *protocol.Gem:
		return *gem, nil
	default:
		return nil, &PluginError{Path: path, Err: ErrPluginSymbol}
	}
}
