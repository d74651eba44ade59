package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/registry"
	"github.com/dukex/sqlgems/pkg/services"
)

// ErrErrorDiagnostics is returned by validate when the component has Error diagnostics.
var ErrErrorDiagnostics = errors.New("component has error diagnostics")

// readDocument loads a compile document from path, or from stdin when path is "-".
func readDocument(path string, stdin io.Reader) (services.Document, error) {
	var doc services.Document

	reader := stdin

	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return doc, fmt.Errorf("failed to open document: %w", err)
		}
		defer func() { _ = file.Close() }()

		reader = file
	}

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&doc); err != nil {
		return doc, fmt.Errorf("failed to decode document %s: %w", path, err)
	}

	return doc, nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(value)
}

func runGems(w io.Writer, reg *registry.Registry) error {
	return writeJSON(w, reg.List())
}

func runReconcile(ctx context.Context, w io.Writer, compiler *services.Compiler, doc services.Document) error {
	reconciled, changed, err := compiler.Reconcile(ctx, doc)
	if err != nil {
		return err
	}

	return writeJSON(w, struct {
		Component models.ComponentRecord `json:"component"`
		Changed   bool                   `json:"changed"`
	}{reconciled, changed})
}

func runValidate(ctx context.Context, w io.Writer, compiler *services.Compiler, doc services.Document) error {
	result, err := compiler.Compile(ctx, doc)
	if err != nil {
		return err
	}

	err = writeJSON(w, struct {
		Diagnostics []models.Diagnostic `json:"diagnostics"`
	}{result.Diagnostics})
	if err != nil {
		return err
	}

	if models.HasErrors(result.Diagnostics) {
		return ErrErrorDiagnostics
	}

	return nil
}

func runEmit(ctx context.Context, w io.Writer, compiler *services.Compiler, doc services.Document) error {
	result, err := compiler.Compile(ctx, doc)
	if err != nil {
		return err
	}

	if models.HasErrors(result.Diagnostics) {
		return &services.InvalidComponentError{NodeID: result.Component.ID, Diagnostics: result.Diagnostics}
	}

	return writeJSON(w, result)
}
