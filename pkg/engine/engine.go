// Package engine evaluates pool design scripts. It wraps zygomys in a
// sandboxed environment and produces a Design from user source code.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/lagoon/pkg/logging"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/pool"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
}

// Design is what a script describes: pool parameters and, for freeform
// pools, the outline.
type Design struct {
	Params   pool.Params
	Outline  *polygon.Polygon
	Warnings []EvalWarning
}

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs past the engine timeout.
	// The interpreter goroutine is abandoned, not killed.
	ErrTimeout = errors.New("engine: design script timed out")
	// ErrSuperseded is returned to a caller whose script finished after a
	// newer Evaluate started.
	ErrSuperseded = errors.New("engine: design script superseded by a newer one")
)

// Engine wraps the zygomys interpreter for design scripts.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{timeout: DefaultTimeout}
}

// outcome carries one script run back from the interpreter goroutine.
type outcome struct {
	design *Design
	errs   []EvalError
	err    error
}

// Evaluate runs a design script and returns the design it describes.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns design + nil errors + nil error
//   - On parse/eval failure: returns nil design + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Design, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		d, evalErrs, err := e.evaluate(source)
		ch <- outcome{design: d, errs: evalErrs, err: err}
	}()

	return e.await(ch, gen)
}

// await returns the run of generation gen, or ErrTimeout. A run that
// lands after a newer Evaluate started reports ErrSuperseded so only the
// latest script reaches the session.
func (e *Engine) await(ch <-chan outcome, gen uint64) (*Design, []EvalError, error) {
	timeout := e.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		latest := e.generation
		e.mu.Unlock()
		if gen != latest {
			logging.Logger().Debug("dropping superseded script", "generation", gen, "latest", latest)
			return nil, nil, ErrSuperseded
		}
		return res.design, res.errs, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Design, []EvalError, error) {
	// Empty source is a valid program describing the default pool.
	if strings.TrimSpace(source) == "" {
		return &Design{Params: pool.DefaultParams()}, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := newDesignBuilder()
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	d := b.finish()
	logging.Logger().Debug("script evaluated", "shape", d.Params.Shape, "outline", d.Outline != nil, "warnings", len(d.Warnings))
	return d, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// Try to extract line numbers from the error message.
	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		detail := strings.TrimSpace(m[2])
		return []EvalError{{
			Line:    line,
			Col:     0,
			Message: detail,
		}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		detail := strings.TrimSpace(m[2])
		return []EvalError{{
			Line:    line,
			Col:     0,
			Message: detail,
		}}
	}

	// Fallback: no line info available.
	return []EvalError{{
		Line:    0,
		Col:     0,
		Message: strings.TrimSpace(msg),
	}}
}
