// Package dsl loads part catalogs written in a small Lisp. Sources are
// evaluated by zygomys in a fresh sandbox per load:
//
//	(part "cube"
//	  :geometry (box 1 1 1)
//	  :connections (list
//	    (connection :id 0 :type "A" :origin (vec3 0 0 0.5) :x (vec3 1 0 0) :y (vec3 0 1 0))))
//	(rule "cube" 0 "cube" 1 :active true :group "stack")
package dsl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/trellis/pkg/catalog"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalTimeout is the default limit for a single load.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned by a load whose result arrived after a newer
// load on the same Loader had started.
var ErrSuperseded = errors.New("dsl: evaluation superseded by newer request")

// EvalError is a non-fatal error in catalog source, such as a parse error
// or a bad builtin argument.
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

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Loader evaluates catalog sources. It is safe for concurrent use; a load
// started later supersedes any still in flight.
type Loader struct {
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewLoader creates a Loader with the default timeout.
func NewLoader() *Loader {
	return &Loader{Timeout: EvalTimeout}
}

// Load evaluates source with a fresh Loader.
func Load(source string) (*catalog.Catalog, []EvalError, error) {
	return NewLoader().Load(context.Background(), source)
}

// LoadFile reads and evaluates the catalog at path with a fresh Loader.
func LoadFile(path string) (*catalog.Catalog, []EvalError, error) {
	return NewLoader().LoadFile(context.Background(), path)
}

// LoadFile reads and evaluates the catalog at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*catalog.Catalog, []EvalError, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dsl: %w", err)
	}
	return l.Load(ctx, string(src))
}

// Load evaluates source and returns the catalog it declares.
//
// Return semantics:
//   - On success: catalog + nil errors + nil error
//   - On parse/eval failure: nil catalog + eval errors + nil error
//   - On fatal failure (timeout, cancellation, panic, superseded): nil + nil + error
//
// The catalog is not validated; see catalog.Catalog.Validate.
func (l *Loader) Load(ctx context.Context, source string) (*catalog.Catalog, []EvalError, error) {
	gen := l.begin()
	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("dsl: panic during evaluation: %v", r)}
			}
		}()
		c, evalErrs, err := evaluate(source)
		ch <- evalResult{catalog: c, errors: evalErrs, err: err}
	}()
	return l.await(ctx, ch, gen)
}

type evalResult struct {
	catalog *catalog.Catalog
	errors  []EvalError
	err     error
}

// begin starts a new generation and returns it.
func (l *Loader) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	return l.generation
}

func (l *Loader) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation == gen
}

// await blocks until ch delivers, ctx ends or the Loader's timeout passes.
// An evaluation left running after a timeout finishes into the buffered
// channel and is dropped.
func (l *Loader) await(ctx context.Context, ch <-chan evalResult, gen uint64) (*catalog.Catalog, []EvalError, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case res := <-ch:
		if !l.current(gen) {
			return nil, nil, ErrSuperseded
		}
		return res.catalog, res.errors, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("dsl: evaluation timed out after %s", timeout)
		}
		return nil, nil, fmt.Errorf("dsl: evaluation: %w", ctx.Err())
	}
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func evaluate(source string) (*catalog.Catalog, []EvalError, error) {
	c := catalog.New()
	if strings.TrimSpace(source) == "" {
		return c, nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, c)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return c, nil, nil
}

// ---------------------------------------------------------------------------
// Error extraction
// ---------------------------------------------------------------------------

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
