package orchestrator

import (
	"errors"
	"testing"

	"github.com/cns-iu/dvl-llm/sandbox"
	"github.com/stretchr/testify/assert"
)

type tableFunc func(sandbox.ErrorKind) bool

func (f tableFunc) HasRetry(k sandbox.ErrorKind) bool { return f(k) }

func TestClassify(t *testing.T) {
	all := tableFunc(func(sandbox.ErrorKind) bool { return true })
	execOnly := tableFunc(func(k sandbox.ErrorKind) bool { return k == sandbox.KindExecutionError })

	tests := []struct {
		name      string
		out       sandbox.Outcome
		err       error
		table     RetryTable
		kind      sandbox.ErrorKind
		retryable bool
	}{
		{"success", sandbox.Success("/o/t_1.html"), nil, all, sandbox.KindNone, false},
		{"execution", sandbox.Failure(sandbox.KindExecutionError, "", "", ""), nil, all, sandbox.KindExecutionError, true},
		{"logical", sandbox.Failure(sandbox.KindLogicalError, "", "", ""), nil, all, sandbox.KindLogicalError, true},
		{"logical not in table", sandbox.Failure(sandbox.KindLogicalError, "", "", ""), nil, execOnly, sandbox.KindLogicalError, false},
		{"timeout", sandbox.Failure(sandbox.KindTimeout, "", "", ""), nil, all, sandbox.KindServiceError, false},
		{"rejected", sandbox.Failure(sandbox.KindSecurityRejected, "", "", ""), nil, all, sandbox.KindServiceError, false},
		{"call failed", sandbox.Outcome{}, errors.New("dial tcp"), all, sandbox.KindServiceError, false},
		{"no table", sandbox.Failure(sandbox.KindExecutionError, "", "", ""), nil, nil, sandbox.KindExecutionError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.out, tt.err, tt.table)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.retryable, v.Retryable)
		})
	}
}
