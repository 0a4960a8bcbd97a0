package ldraw

import (
	"context"
	"errors"
	"fmt"
)

// Loader errors.
var (
	ErrNoFetcher    = errors.New("no fetcher configured")
	ErrLoadAborted  = errors.New("load aborted")
	ErrUnknownModel = errors.New("unknown model")
)

// Fetcher retrieves the backing text for a part identity. Fetches are
// dispatched concurrently; results are consumed through one serialized
// coordinator loop inside the Loader.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, id string) (string, error) {
	return f(ctx, id)
}

// fetchResult is the single completion message per finished fetch.
type fetchResult struct {
	id   string
	text string
	err  error
}

// Loader drives the parser across one or more physical or virtual
// files, tracks which referenced sub-files are still outstanding, and
// fires completion exactly once when the transitive closure is loaded.
// One load runs at a time; sibling sub-file fetches may complete in any
// order, but all mutation happens on the coordinator goroutine.
type Loader struct {
	Colors *ColorTable

	// OnWarning receives recoverable issues; processing continues
	// with a defined fallback.
	OnWarning ReportFunc
	// OnError receives reported errors that do not unwind the load.
	OnError ReportFunc
	// OnProgress is called after each file finishes, with the
	// identity and the number of files still outstanding.
	OnProgress func(id string, outstanding int)

	registry  *Registry
	fetcher   Fetcher
	mainModel string

	ctx     context.Context
	results chan fetchResult
	pending int
}

// NewLoader returns a loader reading file bodies through fetcher. A nil
// fetcher is allowed for single-text use via Parse; referenced
// identities then stay pending and are reported at completion.
func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{
		Colors:   NewColorTable(),
		registry: NewRegistry(),
		fetcher:  fetcher,
		results:  make(chan fetchResult),
	}
}

// Registry returns the identity registry owned by this loader.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// MainModel returns the identity of the top-level model, or "" before
// one is established.
func (l *Loader) MainModel() string {
	return l.mainModel
}

// Load fetches, parses and resolves id and its transitive references,
// blocking until the fixed point is reached: loading a file can
// discover more files to load. It returns the top-level part type.
func (l *Loader) Load(ctx context.Context, id string) (*PartType, error) {
	if l.fetcher == nil {
		return nil, ErrNoFetcher
	}
	l.ctx = ctx
	if l.mainModel == "" {
		l.mainModel = NormalizeID(id)
	}
	l.scheduleLoad(id)
	if err := l.run(ctx); err != nil {
		return nil, err
	}
	l.complete()
	main, state := l.registry.Lookup(l.mainModel)
	if state != EntryLoaded {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return main, nil
}

// LoadText parses an already-fetched text body, then resolves every
// referenced sub-file through the fetcher, blocking until the fixed
// point. It returns the main model.
func (l *Loader) LoadText(ctx context.Context, text string) (*PartType, error) {
	l.ctx = ctx
	main := l.Parse(text)
	if err := l.run(ctx); err != nil {
		return nil, err
	}
	l.complete()
	if main == nil {
		main, _ = l.registry.Lookup(l.mainModel)
	}
	if main == nil {
		return nil, fmt.Errorf("%w: text defined no model", ErrUnknownModel)
	}
	return main, nil
}

// run consumes fetch completion messages until no file is outstanding.
// Parsing a result may schedule further fetches; the pending counter is
// touched only on this goroutine, and it is decremented on success and
// failure alike or completion would never fire.
func (l *Loader) run(ctx context.Context) error {
	for l.pending > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrLoadAborted, ctx.Err())
		case res := <-l.results:
			if res.err != nil {
				l.reportError(Report{
					Message: fmt.Sprintf("loading %q failed: %v", res.id, res.err),
					PartID:  res.id,
				})
			} else {
				l.parseText(res.text, res.id)
				if _, state := l.registry.Lookup(res.id); state == EntryPending {
					l.warn(Report{
						Message: fmt.Sprintf("text fetched for %q did not define it", res.id),
						PartID:  res.id,
					})
				}
			}
			l.pending--
			if l.OnProgress != nil {
				l.OnProgress(res.id, l.pending)
			}
		}
	}
	return nil
}

// scheduleLoad marks id for future ingestion. Known identities are
// ignored. With no fetcher the identity stays pending and is reported
// at completion time.
func (l *Loader) scheduleLoad(id string) {
	id = NormalizeID(id)
	if l.registry.Known(id) {
		return
	}
	l.registry.MarkPending(id)
	if l.fetcher == nil {
		return
	}
	l.pending++
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		text, err := l.fetcher.Fetch(ctx, id)
		// The coordinator stops reading results once the load is
		// aborted; the send must not outlive the context.
		select {
		case l.results <- fetchResult{id: id, text: text, err: err}:
		case <-ctx.Done():
		}
	}()
}

// complete runs once per load after the pending counter reaches zero:
// every completed part type gets exactly one step-normalization pass,
// and identities still unresolved are reported as warnings.
func (l *Loader) complete() {
	for _, id := range l.registry.PendingIDs() {
		l.warn(Report{
			Message: fmt.Sprintf("referenced part %q was never loaded", id),
			PartID:  id,
		})
	}
	for _, pt := range l.registry.Loaded() {
		if err := NormalizeSteps(l.registry, pt); err != nil {
			l.reportError(Report{Message: err.Error(), PartID: pt.ID})
		}
	}
}

func (l *Loader) warn(r Report) {
	if l.OnWarning != nil {
		l.OnWarning(r)
	}
}

func (l *Loader) reportError(r Report) {
	if l.OnError != nil {
		l.OnError(r)
	}
}
