// Package template renders action configuration values against an
// execution's context, so steps can reference variables, trigger payload
// fields and earlier step outputs.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/workstack/macrod/pkg/models"
)

// RenderWithExecution renders input against the execution's variables,
// trigger payload and recorded step outputs.
func RenderWithExecution(input string, execution *models.Execution) (any, error) {
	steps := make(map[string]any, len(execution.ActionResults))
	for _, result := range execution.ActionResults {
		steps[result.StepID] = result.Output
	}

	var trigger map[string]any
	if execution.TriggerContext != nil {
		trigger = execution.TriggerContext.Payload
	}

	data := map[string]any{
		"variables": execution.Variables,
		"vars":      execution.Variables,
		"trigger":   trigger,
		"steps":     steps,
		"execution": map[string]any{
			"id":       execution.ID,
			"macro_id": execution.MacroID,
		},
	}

	return Render(input, data)
}

// RenderConfig renders every string value of a step configuration,
// recursing into nested maps and slices. Non-string values pass through.
func RenderConfig(config map[string]any, execution *models.Execution) (map[string]any, error) {
	rendered := make(map[string]any, len(config))

	for key, value := range config {
		v, err := renderValue(value, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to render config key %q: %w", key, err)
		}

		rendered[key] = v
	}

	return rendered, nil
}

func renderValue(value any, execution *models.Execution) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}

		return RenderWithExecution(v, execution)
	case map[string]any:
		return RenderConfig(v, execution)
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			r, err := renderValue(item, execution)
			if err != nil {
				return nil, err
			}

			out[i] = r
		}

		return out, nil
	default:
		return value, nil
	}
}

// Render executes templateStr against data. Results that look like JSON,
// numbers or booleans are decoded into the corresponding Go value.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// Parse checks that input is a valid template without executing it.
func Parse(input string) (*template.Template, error) {
	return template.New("validate").Parse(input)
}
