package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/invopop/jsonschema"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

// CronFormat is the JSON schema format name for five-field cron expressions.
const CronFormat = "cron"

type cronFormatChecker struct{}

func (cronFormatChecker) IsFormat(input any) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}

	_, err := cron.ParseStandard(s)

	return err == nil
}

var registerFormats sync.Once

func ensureFormats() {
	registerFormats.Do(func() {
		gojsonschema.FormatCheckers.Add(CronFormat, cronFormatChecker{})
	})
}

// settingsSchemas holds the compiled schema of every built-in settings type.
type settingsSchemas map[models.StepType]*gojsonschema.Schema

func builtinSchemas() (settingsSchemas, error) {
	schemas := settingsSchemas{}

	for _, stepType := range []models.StepType{
		models.StepTypePieceTrigger,
		models.StepTypeCode,
		models.StepTypePiece,
		models.StepTypeLoopOnItems,
		models.StepTypeRouter,
	} {
		s, _ := SettingsSchema(stepType)
		// gojsonschema only knows drafts up to 7
		s.Version = ""

		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s))
		if err != nil {
			return nil, fmt.Errorf("compiling %s settings schema: %w", stepType, err)
		}

		schemas[stepType] = compiled
	}

	return schemas, nil
}

// SettingsSchema returns the JSON schema of the settings of a built-in step type.
func SettingsSchema(stepType models.StepType) (*jsonschema.Schema, bool) {
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}

	switch stepType {
	case models.StepTypePieceTrigger:
		return reflector.Reflect(&models.PieceTriggerSettings{}), true
	case models.StepTypeCode:
		return reflector.Reflect(&models.CodeSettings{}), true
	case models.StepTypePiece:
		return reflector.Reflect(&models.PieceActionSettings{}), true
	case models.StepTypeLoopOnItems:
		return reflector.Reflect(&models.LoopOnItemsSettings{}), true
	case models.StepTypeRouter:
		return reflector.Reflect(&models.RouterSettings{}), true
	case models.StepTypeEmpty:
	}

	return nil, false
}

// settingsDocument renders settings as a JSON document. A nil input map
// is validated as an empty object.
func settingsDocument(settings any) (map[string]any, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if v, ok := doc["input"]; ok && v == nil {
		doc["input"] = map[string]any{}
	}

	return doc, nil
}

func resultErrors(result *gojsonschema.Result) []string {
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}

	return errs
}
