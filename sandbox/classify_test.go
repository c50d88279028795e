package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   RunResult
		kind ErrorKind
		ok   bool
	}{
		{"clean exit with artifact", RunResult{ArtifactPath: "/o/t_1.html", ArtifactExists: true}, KindNone, true},
		{"clean exit without artifact", RunResult{ArtifactPath: "/o/t_1.html"}, KindLogicalError, false},
		{"crash without artifact", RunResult{ExitCode: 1, Stderr: "Traceback"}, KindExecutionError, false},
		{"crash with partial artifact", RunResult{ExitCode: 2, ArtifactExists: true}, KindExecutionError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.in)
			assert.Equal(t, tt.ok, out.IsSuccess())
			assert.Equal(t, tt.kind, out.ErrorKind)
			if !tt.ok {
				assert.Equal(t, tt.in.Stderr, out.Stderr())
			}
		})
	}
}

func TestErrorKindClass(t *testing.T) {
	assert.Equal(t, "EXECUTION_ERROR", KindExecutionError.String())
	assert.Equal(t, "LOGICAL_ERROR", KindLogicalError.String())
	assert.Equal(t, "SERVICE_ERROR", KindTimeout.String())
	assert.Equal(t, "SERVICE_ERROR", KindSecurityRejected.String())
	assert.Equal(t, "SERVICE_ERROR", ErrorKind(2999).String())
	assert.Equal(t, "MAX_RETRIES_EXCEEDED", KindMaxRetriesExceeded.String())
	assert.Equal(t, KindExecutionError, KindExecutionError.Class())
}

func TestOutcomeAccessorsAreNilSafe(t *testing.T) {
	out := Success("/o/t_1.html")
	assert.Empty(t, out.Stdout())
	assert.Empty(t, out.Stderr())
}
