package sandbox

// RunResult is what a finished subprocess reports before classification.
type RunResult struct {
	ExitCode       int
	Stdout         string
	Stderr         string
	ArtifactPath   string
	ArtifactExists bool
}

// Classify maps a completed run onto an Outcome. A non-zero exit is an
// execution error even when an artifact is present; the runner clears the
// target before each attempt, so a file here can only be a partial write.
func Classify(r RunResult) Outcome {
	switch {
	case r.ExitCode != 0:
		return Failure(KindExecutionError, "Code Execution Error: the script exited with a non-zero status", r.Stdout, r.Stderr)
	case !r.ArtifactExists:
		return Failure(KindLogicalError, "Logical Error: the script ran but did not create "+r.ArtifactPath, r.Stdout, r.Stderr)
	default:
		return Success(r.ArtifactPath)
	}
}
