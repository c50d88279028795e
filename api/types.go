package api

import (
	"github.com/cns-iu/dvl-llm/history"
	"github.com/cns-iu/dvl-llm/sandbox"
)

type GenerateRequest struct {
	SessionID  string `json:"sessionId,omitempty"`
	Model      string `json:"model,omitempty"`
	Language   string `json:"language"`
	Library    string `json:"library"`
	Task       string `json:"task,omitempty"`
	NamePrefix string `json:"namePrefix,omitempty"`
}

type RefineRequest struct {
	SessionID   string `json:"sessionId"`
	Instruction string `json:"instruction"`
}

type UndoRequest struct {
	SessionID string `json:"sessionId"`
}

// IterationResponse answers generate and undo.
type IterationResponse struct {
	SessionID   string          `json:"sessionId"`
	Code        string          `json:"code"`
	OutputPath  string          `json:"outputPath"`
	ArtifactURL string          `json:"artifactUrl,omitempty"`
	Iteration   int             `json:"iteration"`
	Outcome     sandbox.Outcome `json:"outcome"`
	Error       *ErrorDetail    `json:"error,omitempty"`
}

// RefineResponse names the code field updatedCode.
type RefineResponse struct {
	SessionID   string          `json:"sessionId"`
	UpdatedCode string          `json:"updatedCode"`
	OutputPath  string          `json:"outputPath"`
	ArtifactURL string          `json:"artifactUrl,omitempty"`
	Iteration   int             `json:"iteration"`
	Outcome     sandbox.Outcome `json:"outcome"`
	Error       *ErrorDetail    `json:"error,omitempty"`
}

type VersionsResponse struct {
	SessionID string            `json:"sessionId"`
	Versions  []history.Version `json:"versions"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Sessions  int    `json:"sessions"`
}
