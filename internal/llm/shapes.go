package llm

import (
	"encoding/json"
	"fmt"

	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

// The service returns a different JSON shape per prompt intent. Each shape is
// decoded strictly at this boundary so downstream code never touches
// loosely-typed fields.

// FileAnnotation is the reply shape of the file-summary intent
type FileAnnotation struct {
	Summary  string             `json:"summary"`
	Overview storage.Overview   `json:"overview"`
	Funcs    []storage.FuncInfo `json:"funcs"`
}

type fileAnnotationEnvelope struct {
	Data *FileAnnotation `json:"data"`
}

// DecodeFileAnnotation decodes a file-summary reply
func DecodeFileAnnotation(raw json.RawMessage) (*FileAnnotation, error) {
	var envelope fileAnnotationEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrBadResponse)
	}
	if envelope.Data.Funcs == nil {
		envelope.Data.Funcs = []storage.FuncInfo{}
	}
	return envelope.Data, nil
}

// DecodeDocList decodes the first synthesis round: relative paths of
// supporting documents to read
func DecodeDocList(raw json.RawMessage) ([]string, error) {
	var envelope struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: missing data array", ErrBadResponse)
	}
	return envelope.Data, nil
}

// DecodeProjectDoc decodes the second synthesis round: the condensed project
// explanation document
func DecodeProjectDoc(raw json.RawMessage) (string, error) {
	var envelope struct {
		Data *struct {
			Doc string `json:"doc"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if envelope.Data == nil {
		return "", fmt.Errorf("%w: missing data object", ErrBadResponse)
	}
	return envelope.Data.Doc, nil
}

// GraphResult is the reply shape of the final synthesis round
type GraphResult struct {
	Graph   string                 `json:"graph"`
	Modules []storage.ModuleConfig `json:"data"`
}

// DecodeGraphResult decodes the final synthesis round: the diagram
// specification plus module configurations
func DecodeGraphResult(raw json.RawMessage) (*GraphResult, error) {
	var result GraphResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if result.Graph == "" {
		return nil, fmt.Errorf("%w: missing graph", ErrBadResponse)
	}
	if result.Modules == nil {
		result.Modules = []storage.ModuleConfig{}
	}
	return &result, nil
}
