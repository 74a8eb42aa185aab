package model

import (
	"math"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// SetParams receives values from grids, config files and code alike, so the
// numeric helpers accept any Go numeric type that represents the value
// exactly.

// ParamInt converts a hyperparameter value to int.
func ParamInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", value)
}

// ParamInt64 converts a hyperparameter value to int64.
func ParamInt64(name string, value interface{}) (int64, error) {
	if v, ok := value.(int64); ok {
		return v, nil
	}
	i, err := ParamInt(name, value)
	return int64(i), err
}

// ParamFloat converts a hyperparameter value to float64.
func ParamFloat(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", value)
}

// ParamString converts a hyperparameter value to string.
func ParamString(name string, value interface{}) (string, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return "", errors.NewValidationError(name, "must be a string", value)
}

// ParamBool converts a hyperparameter value to bool.
func ParamBool(name string, value interface{}) (bool, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return false, errors.NewValidationError(name, "must be a bool", value)
}

// UnknownParam is returned by SetParams for names the model does not have.
func UnknownParam(modelName, name string) error {
	return errors.NewValidationError(name, "unknown parameter for "+modelName, nil)
}
