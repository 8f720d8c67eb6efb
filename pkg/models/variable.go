package models

import "encoding/json"

// VariableKind is the declared type of a stored variable value.
type VariableKind string

const (
	VariableKindString  VariableKind = "string"
	VariableKindNumber  VariableKind = "number"
	VariableKindBoolean VariableKind = "boolean"
	VariableKindJSON    VariableKind = "json"
)

// Variable is one entry of an execution's typed environment. Value holds the
// serialized form; unique per (ExecutionID, Name), a later write with the
// same name overwrites value, kind and origin in place.
type Variable struct {
	ExecutionID   string       `json:"execution_id"`
	Name          string       `json:"name"          validate:"required"`
	Value         string       `json:"value"`
	Kind          VariableKind `json:"kind"`
	CreatedByNode string       `json:"created_by_node"`
}

// InferKind maps a raw value to the variable kind it is stored under.
// Booleans stay booleans, any numeric flavor becomes a number, text stays
// text, everything else is stored as JSON.
func InferKind(value any) VariableKind {
	switch value.(type) {
	case bool:
		return VariableKindBoolean
	case int, int32, int64, float32, float64, json.Number:
		return VariableKindNumber
	case string:
		return VariableKindString
	default:
		return VariableKindJSON
	}
}
