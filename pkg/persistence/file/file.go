// Package file provides file-based persistence for workflows and executions.
// It is the development and test store; data lives as JSON documents under a
// root directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	variableRepo  *VariableRepository
	historyRepo   *HistoryRepository

	// Serializes read-modify-write cycles on shared documents (variables,
	// history). Different executions rarely contend; this keeps the dev
	// store correct without per-file locking machinery.
	mu sync.Mutex
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the path is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.workflowRepo = &WorkflowRepository{p: fp}
	fp.executionRepo = &ExecutionRepository{p: fp}
	fp.variableRepo = &VariableRepository{p: fp}
	fp.historyRepo = &HistoryRepository{p: fp}

	return fp
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) VariableRepository() persistence.VariableRepository {
	return fp.variableRepo
}

func (fp *Persistence) HistoryRepository() persistence.HistoryRepository {
	return fp.historyRepo
}

// Close performs any necessary cleanup. Nothing to release for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// validateID rejects identifiers that are unsafe as file name components.
func validateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("identifier contains invalid characters")
	}

	return nil
}

// writeDocument marshals v and writes it under dir/name.json, creating the
// directory as needed.
func (fp *Persistence) writeDocument(dir, name string, v any) error {
	fullDir := filepath.Join(fp.root, dir)

	err := os.MkdirAll(fullDir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fullDir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, name, err)
	}

	path := filepath.Join(fullDir, name+".json")

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// readDocument unmarshals dir/name.json into v. Returns os.ErrNotExist when
// the document is absent.
func (fp *Persistence) readDocument(dir, name string, v any) error {
	path := filepath.Join(fp.root, dir, name+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

func (fp *Persistence) removeDocument(dir, name string) error {
	return os.Remove(filepath.Join(fp.root, dir, name+".json"))
}

// listDocuments returns the id (file name without extension) of every
// document in dir.
func (fp *Persistence) listDocuments(dir string) ([]string, error) {
	fullDir := filepath.Join(fp.root, dir)

	entries, err := os.ReadDir(fullDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read directory %s: %w", fullDir, err)
	}

	var ids []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}

	return ids, nil
}
