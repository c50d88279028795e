// Package orchestrator drives the generate, execute and repair loop for
// visualization code. An Orchestrator owns one editing session: a
// conversation with the model, an iteration counter and an undo history.
//
// An Orchestrator is not safe for concurrent use; callers serialise Run,
// Refine and Undo per instance.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cns-iu/dvl-llm/llm"
	"github.com/cns-iu/dvl-llm/sandbox"
)

var (
	ErrNotInitialized = errors.New("orchestrator: run has not been called")
	ErrNothingToUndo  = errors.New("orchestrator: nothing to undo")
	ErrEmptyPrefix    = errors.New("orchestrator: name prefix is required")
)

const (
	DefaultMaxRetries  = 2
	DefaultOutputDir   = "/app/data/output"
	DefaultArtifactExt = ".html"
)

// State is the engine's position in the attempt loop.
type State string

const (
	StateIdle       State = "IDLE"
	StateGenerating State = "GENERATING"
	StateExecuting  State = "EXECUTING"
	StateRetrying   State = "RETRYING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// ArtifactRemover deletes an artifact produced by an undone iteration.
type ArtifactRemover interface {
	Remove(ctx context.Context, path string) error
}

// RemoverFunc adapts a function to ArtifactRemover.
type RemoverFunc func(ctx context.Context, path string) error

func (f RemoverFunc) Remove(ctx context.Context, path string) error { return f(ctx, path) }

var removeLocalFile = RemoverFunc(func(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
})

type Orchestrator struct {
	gen         llm.Generator
	exec        sandbox.Executor
	prompts     *Prompts
	maxRetries  int
	outputDir   string
	artifactExt string
	task        string
	remover     ArtifactRemover
	listeners   []Listener

	conv        *Conversation
	history     Stack
	iteration   int
	prefix      string
	environment string
	library     string
	state       State
}

type Option func(*Orchestrator)

func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithPrompts(p *Prompts) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.prompts = p
		}
	}
}

// WithOutputDir sets the directory the model is told to write into. It must
// match the executor's output directory. Relative paths are made absolute,
// since the generated script runs in its own workspace.
func WithOutputDir(dir string) Option {
	return func(o *Orchestrator) {
		if dir == "" {
			return
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		o.outputDir = dir
	}
}

func WithArtifactExt(ext string) Option {
	return func(o *Orchestrator) {
		if ext != "" {
			o.artifactExt = ext
		}
	}
}

// WithTask overrides the chart description used in the initial prompt.
func WithTask(task string) Option {
	return func(o *Orchestrator) { o.task = strings.TrimSpace(task) }
}

func WithArtifactRemover(r ArtifactRemover) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.remover = r
		}
	}
}

func WithListener(l Listener) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

func New(gen llm.Generator, exec sandbox.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:         gen,
		exec:        exec,
		prompts:     DefaultPrompts(),
		maxRetries:  DefaultMaxRetries,
		outputDir:   DefaultOutputDir,
		artifactExt: DefaultArtifactExt,
		remover:     removeLocalFile,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.task == "" {
		o.task = o.prompts.DefaultTask
	}
	return o
}

func outputName(prefix string, iteration int) string {
	return fmt.Sprintf("%s_%d", prefix, iteration)
}

func (o *Orchestrator) outputPath(name string) string {
	return filepath.Join(o.outputDir, name+o.artifactExt)
}

// Run starts a fresh session and performs iteration 1. Any previous
// conversation and history are discarded.
func (o *Orchestrator) Run(ctx context.Context, environment, library, namePrefix string) (sandbox.Outcome, error) {
	if strings.TrimSpace(namePrefix) == "" {
		return sandbox.Outcome{}, ErrEmptyPrefix
	}
	name := outputName(namePrefix, 1)
	instruction, err := o.prompts.Initial(InitialVars{
		Environment: environment,
		Library:     library,
		OutputName:  name,
		OutputPath:  o.outputPath(name),
		Task:        o.task,
	})
	if err != nil {
		return sandbox.Outcome{}, fmt.Errorf("render initial prompt: %w", err)
	}
	conv := NewConversation(o.prompts.System)
	if err := conv.Append(llm.RoleUser, instruction); err != nil {
		return sandbox.Outcome{}, err
	}

	// The previous session survives until the new one is ready to start.
	o.prefix = namePrefix
	o.environment = environment
	o.library = library
	o.history.Reset()
	o.iteration = 1
	o.conv = conv

	log.Printf("🚀 [ORCH] Run %s: environment=%s library=%s max_retries=%d", name, environment, library, o.maxRetries)
	return o.iterate(ctx, name), nil
}

// Refine asks the model to change the current code and saves the result as
// the next iteration.
func (o *Orchestrator) Refine(ctx context.Context, instruction string) (sandbox.Outcome, error) {
	if o.conv == nil || o.history.Len() == 0 {
		return sandbox.Outcome{}, ErrNotInitialized
	}
	name := outputName(o.prefix, o.iteration+1)
	msg, err := o.prompts.Refine(RefineVars{
		Instruction: strings.TrimSpace(instruction),
		OutputName:  name,
		OutputPath:  o.outputPath(name),
	})
	if err != nil {
		return sandbox.Outcome{}, fmt.Errorf("render refine prompt: %w", err)
	}
	if err := o.conv.Append(llm.RoleUser, msg); err != nil {
		return sandbox.Outcome{}, err
	}
	o.iteration++

	log.Printf("✏️ [ORCH] Refine %s: %q", name, instruction)
	return o.iterate(ctx, name), nil
}

// Undo reverts to the previous iteration and returns its outcome. The
// undone iteration's artifact is removed on a best-effort basis.
func (o *Orchestrator) Undo(ctx context.Context) (sandbox.Outcome, error) {
	if o.history.Len() < 2 {
		return sandbox.Outcome{}, ErrNothingToUndo
	}
	undone, _ := o.history.Pop()
	if undone.Outcome.IsSuccess() && undone.Outcome.OutputArtifactPath != "" {
		if err := o.remover.Remove(ctx, undone.Outcome.OutputArtifactPath); err != nil {
			log.Printf("⚠️ [ORCH] Could not remove %s after undo: %v", undone.Outcome.OutputArtifactPath, err)
		}
	}

	top, _ := o.history.Top()
	o.conv = restoreConversation(top.Conversation)
	o.iteration = top.Iteration
	if top.Outcome.IsSuccess() {
		o.state = StateSucceeded
	} else {
		o.state = StateFailed
	}

	log.Printf("↩️ [ORCH] Undo %s -> %s", undone.OutputName, top.OutputName)
	o.emit(Event{
		Type:       EventUndo,
		Iteration:  top.Iteration,
		OutputName: top.OutputName,
		Code:       top.Code,
		Outcome:    top.Outcome,
		Undone:     undone.OutputName,
	})
	return top.Outcome, nil
}

// iterate runs the attempt loop for the current iteration and commits a
// snapshot whatever the result.
func (o *Orchestrator) iterate(ctx context.Context, name string) sandbox.Outcome {
	start := time.Now()
	out := o.attemptLoop(ctx, name)
	if out.IsSuccess() {
		o.state = StateSucceeded
	} else {
		o.state = StateFailed
	}

	snap := Snapshot{
		Iteration:    o.iteration,
		OutputName:   name,
		Code:         lastCode(o.conv.msgs),
		Outcome:      out,
		Conversation: o.conv.Snapshot(),
		CreatedAt:    time.Now().UTC(),
	}
	o.history.Push(snap)

	log.Printf("📦 [ORCH] Iteration %d (%s) finished %s in %v", o.iteration, name, o.state, time.Since(start))
	o.emit(Event{
		Type:       EventIteration,
		Iteration:  o.iteration,
		OutputName: name,
		Code:       snap.Code,
		Outcome:    out,
	})
	return out
}

func (o *Orchestrator) attemptLoop(ctx context.Context, name string) sandbox.Outcome {
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		o.state = StateGenerating
		log.Printf("🔄 [ORCH] %s attempt %d/%d", name, attempt+1, o.maxRetries+1)

		raw, err := o.gen.Generate(ctx, o.conv.Snapshot())
		if err != nil {
			log.Printf("❌ [ORCH] Code generation failed: %v", err)
			return sandbox.Failure(sandbox.KindServiceError, "code generation failed: "+err.Error(), "", "")
		}
		code := Extract(raw)
		if err := o.conv.recordCode(code); err != nil {
			return sandbox.Failure(sandbox.KindServiceError, err.Error(), "", "")
		}

		o.state = StateExecuting
		out, callErr := o.exec.Execute(ctx, sandbox.Request{
			Code:             code,
			OutputNamePrefix: name,
			Environment:      o.environment,
		})
		verdict := Classify(out, callErr, o.prompts)
		if callErr != nil {
			log.Printf("❌ [ORCH] Executor call failed: %v", callErr)
			out = sandbox.Failure(sandbox.KindServiceError, "executor unavailable: "+callErr.Error(), "", "")
		}

		retrying := verdict.Retryable && attempt < o.maxRetries
		o.emit(Event{
			Type:       EventAttempt,
			Iteration:  o.iteration,
			Attempt:    attempt,
			OutputName: name,
			Code:       code,
			Outcome:    out,
			Retrying:   retrying,
		})

		if verdict.Status == sandbox.StatusSuccess {
			log.Printf("✅ [ORCH] %s succeeded on attempt %d", name, attempt+1)
			return out
		}
		if !retrying {
			log.Printf("🛑 [ORCH] %s failed with %s on attempt %d (retryable=%t)", name, verdict.Kind, attempt+1, verdict.Retryable)
			return out
		}

		o.state = StateRetrying
		prompt, err := o.prompts.Retry(verdict.Kind, RetryVars{
			Stdout:     out.Stdout(),
			Stderr:     out.Stderr(),
			Message:    out.ErrorMessage,
			OutputName: name,
			OutputPath: o.outputPath(name),
			Attempt:    attempt + 1,
		})
		if err != nil {
			log.Printf("❌ [ORCH] Could not render retry prompt: %v", err)
			return out
		}
		if err := o.conv.Append(llm.RoleUser, prompt); err != nil {
			return out
		}
		log.Printf("🔧 [ORCH] %s failed with %s, asking the model to fix it", name, verdict.Kind)
	}

	return sandbox.Failure(sandbox.KindMaxRetriesExceeded, fmt.Sprintf("max retries (%d) exceeded", o.maxRetries), "", "")
}

func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) Iteration() int { return o.iteration }

func (o *Orchestrator) Prefix() string { return o.prefix }

// Current returns the snapshot of the active iteration.
func (o *Orchestrator) Current() (Snapshot, bool) {
	snap, ok := o.history.Top()
	if ok {
		snap.Conversation = cloneMessages(snap.Conversation)
	}
	return snap, ok
}

// Versions returns every iteration still on the undo stack, oldest first.
func (o *Orchestrator) Versions() []Snapshot { return o.history.All() }

// Messages returns a copy of the live conversation.
func (o *Orchestrator) Messages() []llm.Message {
	if o.conv == nil {
		return nil
	}
	return o.conv.Snapshot()
}
