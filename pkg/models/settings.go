package models

// PropertyExecutionType tells the engine how a piece property is resolved.
type PropertyExecutionType string

const (
	PropertyExecutionTypeManual  PropertyExecutionType = "MANUAL"
	PropertyExecutionTypeDynamic PropertyExecutionType = "DYNAMIC"
)

type PropertySettings struct {
	Type   PropertyExecutionType `json:"type"             validate:"required,oneof=MANUAL DYNAMIC"`
	Schema map[string]any        `json:"schema,omitempty"`
}

// SampleDataSettings points to cached test-run data of a step.
type SampleDataSettings struct {
	SampleDataFileID      string `json:"sampleDataFileId,omitempty"`
	SampleDataInputFileID string `json:"sampleDataInputFileId,omitempty"`
	LastTestDate          string `json:"lastTestDate,omitempty"`
}

type ErrorHandlingOption struct {
	Value bool `json:"value"`
}

type ErrorHandlingOptions struct {
	ContinueOnFailure *ErrorHandlingOption `json:"continueOnFailure,omitempty"`
	RetryOnFailure    *ErrorHandlingOption `json:"retryOnFailure,omitempty"`
}

type PieceTriggerSettings struct {
	PieceName        string                      `json:"pieceName"                  jsonschema:"minLength=1"`
	PieceVersion     string                      `json:"pieceVersion"               jsonschema:"minLength=1"`
	TriggerName      string                      `json:"triggerName,omitempty"`
	Input            map[string]any              `json:"input"`
	PropertySettings map[string]PropertySettings `json:"propertySettings,omitempty"`
	SampleData       *SampleDataSettings         `json:"sampleData,omitempty"`
}

type SourceCode struct {
	Code        string `json:"code"`
	PackageJSON string `json:"packageJson"`
}

type CodeSettings struct {
	SourceCode           SourceCode            `json:"sourceCode"`
	Input                map[string]any        `json:"input"`
	ErrorHandlingOptions *ErrorHandlingOptions `json:"errorHandlingOptions,omitempty"`
	SampleData           *SampleDataSettings   `json:"sampleData,omitempty"`
}

type PieceActionSettings struct {
	PieceName            string                      `json:"pieceName"                      jsonschema:"minLength=1"`
	PieceVersion         string                      `json:"pieceVersion"                   jsonschema:"minLength=1"`
	ActionName           string                      `json:"actionName,omitempty"`
	Input                map[string]any              `json:"input"`
	PropertySettings     map[string]PropertySettings `json:"propertySettings,omitempty"`
	ErrorHandlingOptions *ErrorHandlingOptions       `json:"errorHandlingOptions,omitempty"`
	SampleData           *SampleDataSettings         `json:"sampleData,omitempty"`
}

type LoopOnItemsSettings struct {
	Items      string              `json:"items"`
	SampleData *SampleDataSettings `json:"sampleData,omitempty"`
}

type RouterExecutionType string

const (
	RouterExecuteFirstMatch RouterExecutionType = "EXECUTE_FIRST_MATCH"
	RouterExecuteAllMatch   RouterExecutionType = "EXECUTE_ALL_MATCH"
)

// RouterSettings excludes the branches, which live on RouterAction.Branches.
type RouterSettings struct {
	ExecutionType RouterExecutionType `json:"executionType"        jsonschema:"enum=EXECUTE_FIRST_MATCH,enum=EXECUTE_ALL_MATCH"`
	SampleData    *SampleDataSettings `json:"sampleData,omitempty"`
}
