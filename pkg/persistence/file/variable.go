package file

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

const variablesDir = "variables"

// VariableRepository stores all variables of one execution as a single JSON
// document keyed by name.
type VariableRepository struct {
	p *Persistence
}

func (vr *VariableRepository) Upsert(_ context.Context, variable *models.Variable) error {
	if err := validateID(variable.ExecutionID); err != nil {
		return &persistence.StoreError{Op: "Upsert", Key: variable.ExecutionID, Err: err}
	}

	vr.p.mu.Lock()
	defer vr.p.mu.Unlock()

	vars, err := vr.load(variable.ExecutionID)
	if err != nil {
		return err
	}

	vars[variable.Name] = variable

	return vr.p.writeDocument(variablesDir, variable.ExecutionID, vars)
}

func (vr *VariableRepository) GetByName(_ context.Context, executionID, name string) (*models.Variable, error) {
	if err := validateID(executionID); err != nil {
		return nil, &persistence.StoreError{Op: "GetByName", Key: executionID, Err: err}
	}

	vr.p.mu.Lock()
	defer vr.p.mu.Unlock()

	vars, err := vr.load(executionID)
	if err != nil {
		return nil, err
	}

	variable, ok := vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %s of execution %s: %w", name, executionID, persistence.ErrVariableNotFound)
	}

	return variable, nil
}

func (vr *VariableRepository) ListByExecution(_ context.Context, executionID string) ([]*models.Variable, error) {
	if err := validateID(executionID); err != nil {
		return nil, &persistence.StoreError{Op: "ListByExecution", Key: executionID, Err: err}
	}

	vr.p.mu.Lock()
	defer vr.p.mu.Unlock()

	vars, err := vr.load(executionID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}

	sort.Strings(names)

	variables := make([]*models.Variable, 0, len(vars))
	for _, name := range names {
		variables = append(variables, vars[name])
	}

	return variables, nil
}

func (vr *VariableRepository) load(executionID string) (map[string]*models.Variable, error) {
	vars := make(map[string]*models.Variable)

	err := vr.p.readDocument(variablesDir, executionID, &vars)
	if err != nil && !os.IsNotExist(err) {
		return nil, &persistence.StoreError{Op: "load", Key: executionID, Err: err}
	}

	return vars, nil
}
