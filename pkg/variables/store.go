// Package variables implements the typed key/value environment scoped to one
// execution, plus the template-rendering service over it.
package variables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
	"github.com/ccxxllhl2/ai-workflow/pkg/template"
)

// truthy is the token set accepted as boolean true on deserialization.
var truthy = map[string]bool{"true": true, "1": true, "yes": true, "on": true}

// Store reads and writes an execution's variable environment. All methods are
// keyed by execution id; different executions never interact.
type Store struct {
	repo persistence.VariableRepository
}

func NewStore(repo persistence.VariableRepository) *Store {
	return &Store{repo: repo}
}

// Set upserts one variable. A write with an existing name overwrites value,
// kind and origin in place.
func (s *Store) Set(ctx context.Context, executionID, name string, value any, kind models.VariableKind, createdByNode string) error {
	serialized, err := serialize(value, kind)
	if err != nil {
		return fmt.Errorf("failed to serialize variable %s: %w", name, err)
	}

	return s.repo.Upsert(ctx, &models.Variable{
		ExecutionID:   executionID,
		Name:          name,
		Value:         serialized,
		Kind:          kind,
		CreatedByNode: createdByNode,
	})
}

// SetAll writes every entry of the map, inferring each value's kind.
func (s *Store) SetAll(ctx context.Context, executionID string, values map[string]any, createdByNode string) error {
	for name, value := range values {
		err := s.Set(ctx, executionID, name, value, models.InferKind(value), createdByNode)
		if err != nil {
			return err
		}
	}

	return nil
}

// Get returns the deserialized value of one variable. The second return is
// false when the variable is absent.
func (s *Store) Get(ctx context.Context, executionID, name string) (any, bool, error) {
	variable, err := s.repo.GetByName(ctx, executionID, name)
	if err != nil {
		if errors.Is(err, persistence.ErrVariableNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return deserialize(variable.Value, variable.Kind), true, nil
}

// GetAll returns the full environment as a map. It doubles as the template
// rendering context and as the per-step audit snapshot.
func (s *Store) GetAll(ctx context.Context, executionID string) (map[string]any, error) {
	variables, err := s.repo.ListByExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]any, len(variables))
	for _, variable := range variables {
		result[variable.Name] = deserialize(variable.Value, variable.Kind)
	}

	return result, nil
}

// Render expands {{name}} placeholders in the template against the current
// environment. Unknown names expand empty; malformed templates return a
// *template.Error.
func (s *Store) Render(ctx context.Context, executionID, templateStr string) (string, error) {
	environment, err := s.GetAll(ctx, executionID)
	if err != nil {
		return "", err
	}

	return template.Render(templateStr, environment)
}

// serialize encodes a value for storage under the given kind. JSON values get
// structural encoding, booleans the canonical lowercase token, everything
// else its textual representation.
func serialize(value any, kind models.VariableKind) (string, error) {
	switch kind {
	case models.VariableKindJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return "", err
		}

		return string(data), nil
	case models.VariableKindBoolean:
		b, ok := value.(bool)
		if !ok {
			b = truthy[strings.ToLower(fmt.Sprintf("%v", value))]
		}

		return strconv.FormatBool(b), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

// deserialize decodes a stored value per its kind. Failures degrade to the
// raw stored text rather than erroring: a half-broken variable is still more
// useful to templates and conditions than a dead run.
func deserialize(value string, kind models.VariableKind) any {
	switch kind {
	case models.VariableKindJSON:
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return value
		}

		return decoded
	case models.VariableKindNumber:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}

		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}

		return value
	case models.VariableKindBoolean:
		return truthy[strings.ToLower(value)]
	default:
		return value
	}
}
