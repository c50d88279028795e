// Package sandbox runs generated plotting code under a resource-bounded,
// capability-restricted subprocess and reports a structured outcome.
//
// The same Outcome type travels over the wire between the dvl-executor
// service and its callers, so its JSON shape is part of the executor
// contract.
package sandbox

import (
	"context"
	"fmt"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorKind is the numeric error code carried in errorKind. Codes in
// [2000, 3000) are all service-class failures; the finer codes only tell a
// security rejection apart from a timeout.
type ErrorKind int

const (
	KindNone               ErrorKind = 0
	KindExecutionError     ErrorKind = 1000
	KindLogicalError       ErrorKind = 1001
	KindServiceError       ErrorKind = 2000
	KindSecurityRejected   ErrorKind = 2001
	KindTimeout            ErrorKind = 2002
	KindMaxRetriesExceeded ErrorKind = 3000
)

// Class folds the service sub-codes onto KindServiceError.
func (k ErrorKind) Class() ErrorKind {
	if k >= KindServiceError && k < KindMaxRetriesExceeded {
		return KindServiceError
	}
	return k
}

func (k ErrorKind) String() string {
	switch k.Class() {
	case KindNone:
		return "NONE"
	case KindExecutionError:
		return "EXECUTION_ERROR"
	case KindLogicalError:
		return "LOGICAL_ERROR"
	case KindServiceError:
		return "SERVICE_ERROR"
	case KindMaxRetriesExceeded:
		return "MAX_RETRIES_EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN_%d", int(k))
	}
}

// Details holds the captured process streams of a failed run.
type Details struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Request asks the executor to run Code and produce the artifact named
// OutputNamePrefix.
type Request struct {
	Code             string `json:"code"`
	OutputNamePrefix string `json:"outputNamePrefix"`
	Environment      string `json:"environment,omitempty"`
}

// Outcome is the tagged result of one sandbox call.
type Outcome struct {
	Status             string    `json:"status"`
	OutputArtifactPath string    `json:"outputArtifactPath,omitempty"`
	ErrorKind          ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage       string    `json:"errorMessage,omitempty"`
	Details            *Details  `json:"details,omitempty"`
}

// Executor is anything that can run a Request: the local Runner or the
// HTTP Client.
type Executor interface {
	Execute(ctx context.Context, req Request) (Outcome, error)
}

func Success(artifactPath string) Outcome {
	return Outcome{Status: StatusSuccess, OutputArtifactPath: artifactPath}
}

func Failure(kind ErrorKind, message, stdout, stderr string) Outcome {
	return Outcome{
		Status:       StatusError,
		ErrorKind:    kind,
		ErrorMessage: message,
		Details:      &Details{Stdout: stdout, Stderr: stderr},
	}
}

func (o Outcome) IsSuccess() bool { return o.Status == StatusSuccess }

// Stdout and Stderr are nil-safe accessors for the details block.
func (o Outcome) Stdout() string {
	if o.Details == nil {
		return ""
	}
	return o.Details.Stdout
}

func (o Outcome) Stderr() string {
	if o.Details == nil {
		return ""
	}
	return o.Details.Stderr
}
