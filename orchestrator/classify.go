package orchestrator

import "github.com/cns-iu/dvl-llm/sandbox"

// RetryTable tells the classifier which error kinds can be repaired.
type RetryTable interface {
	HasRetry(kind sandbox.ErrorKind) bool
}

// Verdict is the loop's decision for one attempt.
type Verdict struct {
	Status    string
	Kind      sandbox.ErrorKind
	Retryable bool
}

// Classify decides whether the loop stops or re-prompts. A failed executor
// call is a service error and never retried; of the code-quality kinds only
// those with a retry template are retryable.
func Classify(out sandbox.Outcome, callErr error, table RetryTable) Verdict {
	if callErr != nil {
		return Verdict{Status: sandbox.StatusError, Kind: sandbox.KindServiceError}
	}
	if out.IsSuccess() {
		return Verdict{Status: sandbox.StatusSuccess}
	}

	kind := out.ErrorKind.Class()
	v := Verdict{Status: sandbox.StatusError, Kind: kind}
	switch kind {
	case sandbox.KindExecutionError, sandbox.KindLogicalError:
		v.Retryable = table != nil && table.HasRetry(kind)
	}
	return v
}
