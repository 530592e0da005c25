package registry

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/services"
)

// macroSchema is the JSON-schema contract every macro definition must meet
// before the engine will schedule or dispatch it.
const macroSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "steps"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 3},
    "enabled": {"type": "boolean"},
    "trigger": {
      "type": "object",
      "properties": {
        "event_types": {"type": "array", "items": {"type": "string"}},
        "sources": {"type": "array", "items": {"type": "string"}}
      }
    },
    "schedule": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["one_time", "hourly", "daily", "weekly", "monthly", "cron"]},
        "interval": {"type": "integer"},
        "days_of_month": {"type": "array", "items": {"type": "integer", "minimum": 1, "maximum": 31}},
        "max_executions": {"type": "integer", "minimum": 0}
      }
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// ValidateMacro checks a macro definition against the JSON schema, the
// struct validation tags and the registry's known action types. A failure
// is a ValidationError: the macro is rejected at registration and never
// reaches scheduling or dispatch.
func (r *Registry) ValidateMacro(validate *validator.Validate, macro *models.Macro) error {
	document, err := json.Marshal(macro)
	if err != nil {
		return services.NewValidationError(fmt.Sprintf("macro is not serializable: %v", err))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(macroSchema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return services.NewValidationError(fmt.Sprintf("schema validation failed: %v", err))
	}

	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			if detail != "" {
				detail += "; "
			}

			detail += desc.String()
		}

		return services.NewValidationError(detail)
	}

	if err := validate.Struct(macro); err != nil {
		return services.NewValidationError(err.Error())
	}

	if macro.Schedule != nil {
		if err := macro.Schedule.Validate(); err != nil {
			return services.NewValidationError(fmt.Sprintf("schedule: %v", err))
		}
	}

	return r.validateSteps(macro.Steps)
}

func (r *Registry) validateSteps(steps []models.ActionStep) error {
	for _, step := range steps {
		if step.Type.IsFlowControl() {
			for _, branch := range step.Branches {
				if err := r.validateSteps(branch); err != nil {
					return err
				}
			}

			continue
		}

		if !r.IsActionRegistered(string(step.Type)) {
			return services.NewValidationError(
				fmt.Sprintf("step %s references unregistered action type %q", step.ID, step.Type))
		}
	}

	return nil
}
