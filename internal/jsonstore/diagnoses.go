// Package jsonstore keeps diagnoses in a single JSON document of the form
// {username: {case: text}}.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rpggio/casereview/internal/repository"
)

type document map[string]map[string]string

// Diagnoses implements diagnosis.Repository on a JSON file. Every write
// reads the whole document, changes one entry and rewrites it.
type Diagnoses struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewDiagnoses creates a store backed by path.
func NewDiagnoses(path string, logger *slog.Logger) *Diagnoses {
	return &Diagnoses{path: path, logger: logger}
}

// Get returns the text of one diagnosis.
func (d *Diagnoses) Get(ctx context.Context, username, caseID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	if err != nil {
		return "", err
	}
	text, ok := doc[username][caseID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return text, nil
}

// Set stores text, replacing any previous diagnosis for the case.
func (d *Diagnoses) Set(ctx context.Context, username, caseID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	if err != nil {
		return err
	}
	if doc[username] == nil {
		doc[username] = make(map[string]string)
	}
	doc[username][caseID] = text
	if err := d.save(doc); err != nil {
		return err
	}
	if d.logger != nil {
		d.logger.DebugContext(ctx, "saved diagnosis", "username", username, "case", caseID)
	}
	return nil
}

// Delete removes one diagnosis.
func (d *Diagnoses) Delete(ctx context.Context, username, caseID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	if err != nil {
		return err
	}
	if _, ok := doc[username][caseID]; !ok {
		return repository.ErrNotFound
	}
	delete(doc[username], caseID)
	if len(doc[username]) == 0 {
		delete(doc, username)
	}
	return d.save(doc)
}

// ListForUser returns case -> text for every diagnosis of username.
func (d *Diagnoses) ListForUser(ctx context.Context, username string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc[username]))
	for k, v := range doc[username] {
		out[k] = v
	}
	return out, nil
}

func (d *Diagnoses) load() (document, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(document), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading diagnoses: %w", err)
	}
	doc := make(document)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing diagnoses: %w", err)
	}
	return doc, nil
}

func (d *Diagnoses) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding diagnoses: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing diagnoses: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing diagnoses: %w", err)
	}
	return nil
}
