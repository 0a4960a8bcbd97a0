package ldraw

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mapFetcher serves file bodies from a map and counts fetches per id.
type mapFetcher struct {
	files   map[string]string
	fetches atomic.Int32
}

func (f *mapFetcher) Fetch(_ context.Context, id string) (string, error) {
	f.fetches.Add(1)
	text, ok := f.files[id]
	if !ok {
		return "", fmt.Errorf("no such file: %s", id)
	}
	return text, nil
}

func TestLoaderLoad(t *testing.T) {
	fetcher := &mapFetcher{files: map[string]string{
		"car.ldr": "0 FILE car.ldr\n" +
			"0 Car\n" +
			"1 4 0 0 0 1 0 0 0 1 0 0 0 1 wheel.dat\n" +
			"1 4 20 0 0 1 0 0 0 1 0 0 0 1 wheel.dat\n" +
			"1 2 0 -10 0 1 0 0 0 1 0 0 0 1 body.ldr\n",
		"body.ldr": "0 FILE body.ldr\n" +
			"0 Body\n" +
			"1 16 0 0 0 1 0 0 0 1 0 0 0 1 wheel.dat\n",
		"wheel.dat": "0 Wheel\n" +
			"0 Name: wheel.dat\n" +
			"3 16 0 0 0 1 0 0 0 1 0\n",
	}}

	loader := NewLoader(fetcher)
	main, err := loader.Load(context.Background(), "car.ldr")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if main.ID != "car.ldr" {
		t.Errorf("main = %q, want car.ldr", main.ID)
	}
	if got := loader.MainModel(); got != "car.ldr" {
		t.Errorf("MainModel = %q, want car.ldr", got)
	}

	wheel, state := loader.Registry().Lookup("wheel.dat")
	if state != EntryLoaded {
		t.Fatalf("wheel.dat state = %v, want loaded", state)
	}
	if !wheel.IsLeaf() {
		t.Error("wheel.dat classified as assembly")
	}

	// Each file is fetched once even when referenced repeatedly.
	if n := fetcher.fetches.Load(); n != 3 {
		t.Errorf("fetches = %d, want 3", n)
	}

	count, err := main.CountParts(loader.Registry())
	if err != nil {
		t.Fatalf("CountParts error: %v", err)
	}
	if count != 3 {
		t.Errorf("CountParts = %d, want 3", count)
	}
}

func TestLoaderLoadText(t *testing.T) {
	fetcher := &mapFetcher{files: map[string]string{
		"brick.dat": "0 Brick\n0 Name: brick.dat\n3 16 0 0 0 1 0 0 0 1 0\n",
	}}

	loader := NewLoader(fetcher)
	main, err := loader.LoadText(context.Background(),
		"0 FILE model.ldr\n1 4 0 0 0 1 0 0 0 1 0 0 0 1 brick.dat\n")
	if err != nil {
		t.Fatalf("LoadText error: %v", err)
	}
	if main.ID != "model.ldr" {
		t.Errorf("main = %q, want model.ldr", main.ID)
	}
	if _, state := loader.Registry().Lookup("brick.dat"); state != EntryLoaded {
		t.Error("brick.dat was not resolved through the fetcher")
	}
}

func TestLoaderFetchFailureIsReported(t *testing.T) {
	fetcher := &mapFetcher{files: map[string]string{}}

	var errs, warnings []Report
	loader := NewLoader(fetcher)
	loader.OnError = func(r Report) { errs = append(errs, r) }
	loader.OnWarning = func(r Report) { warnings = append(warnings, r) }

	main, err := loader.LoadText(context.Background(),
		"0 FILE model.ldr\n1 4 0 0 0 1 0 0 0 1 0 0 0 1 missing.dat\n")
	if err != nil {
		t.Fatalf("LoadText error: %v", err)
	}
	if main == nil {
		t.Fatal("main model lost over a sub-file failure")
	}
	if len(errs) == 0 {
		t.Error("fetch failure produced no error report")
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w.Message, "missing.dat") {
			found = true
		}
	}
	if !found {
		t.Error("unresolved identity missing from completion warnings")
	}
	if _, state := loader.Registry().Lookup("missing.dat"); state != EntryPending {
		t.Error("failed identity should stay pending")
	}
}

func TestLoaderTextNotDefiningIdentity(t *testing.T) {
	// The fetched body for odd.dat declares a different identity; the
	// sub-file adopts the identity it was fetched as.
	fetcher := &mapFetcher{files: map[string]string{
		"odd.dat": "0 Odd\n3 16 0 0 0 1 0 0 0 1 0\n",
	}}

	loader := NewLoader(fetcher)
	_, err := loader.LoadText(context.Background(),
		"0 FILE m.ldr\n1 4 0 0 0 1 0 0 0 1 0 0 0 1 odd.dat\n")
	if err != nil {
		t.Fatalf("LoadText error: %v", err)
	}
	if _, state := loader.Registry().Lookup("odd.dat"); state != EntryLoaded {
		t.Error("headerless sub-file did not adopt its fetch identity")
	}
}

func TestLoaderNoFetcher(t *testing.T) {
	loader := NewLoader(nil)
	if _, err := loader.Load(context.Background(), "m.ldr"); !errors.Is(err, ErrNoFetcher) {
		t.Errorf("err = %v, want ErrNoFetcher", err)
	}
}

func TestLoaderUnknownModel(t *testing.T) {
	fetcher := &mapFetcher{files: map[string]string{}}
	loader := NewLoader(fetcher)
	if _, err := loader.Load(context.Background(), "nope.ldr"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
}

func TestLoaderAbortOnContextCancel(t *testing.T) {
	block := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, id string) (string, error) {
		<-block // hold the fetch until released below
		return "", nil
	})

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	loader := NewLoader(fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctx, "m.ldr")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrLoadAborted) {
			t.Errorf("err = %v, want ErrLoadAborted", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Load did not abort on cancellation")
	}

	// Once released, the fetch goroutine must not stay blocked on the
	// abandoned results channel.
	close(block)
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Errorf("goroutines after abort = %d, want at most the %d from before", after, before)
	}
}

func TestLoaderProgress(t *testing.T) {
	fetcher := &mapFetcher{files: map[string]string{
		"a.dat": "0 A\n3 16 0 0 0 1 0 0 0 1 0\n",
		"b.dat": "0 B\n3 16 0 0 0 1 0 0 0 1 0\n",
	}}

	var events int
	var last int
	loader := NewLoader(fetcher)
	loader.OnProgress = func(id string, outstanding int) {
		events++
		last = outstanding
	}

	_, err := loader.LoadText(context.Background(),
		"0 FILE m.ldr\n"+
			"1 16 0 0 0 1 0 0 0 1 0 0 0 1 a.dat\n"+
			"1 16 0 0 0 1 0 0 0 1 0 0 0 1 b.dat\n")
	if err != nil {
		t.Fatalf("LoadText error: %v", err)
	}
	if events != 2 {
		t.Errorf("progress events = %d, want 2", events)
	}
	if last != 0 {
		t.Errorf("final outstanding = %d, want 0", last)
	}
}

func TestLoaderNormalizesAfterCompletion(t *testing.T) {
	fetcher := &mapFetcher{files: map[string]string{
		"brick.dat": "0 Brick\n0 Name: brick.dat\n3 16 0 0 0 1 0 0 0 1 0\n",
		"sub.ldr": "0 FILE sub.ldr\n" +
			"1 16 0 0 0 1 0 0 0 1 0 0 0 1 brick.dat\n",
	}}

	loader := NewLoader(fetcher)
	main, err := loader.LoadText(context.Background(),
		"0 FILE m.ldr\n"+
			"1 4 0 0 0 1 0 0 0 1 0 0 0 1 sub.ldr\n"+
			"1 4 0 0 0 1 0 0 0 1 0 0 0 1 brick.dat\n"+
			"1 2 0 0 0 1 0 0 0 1 0 0 0 1 sub.ldr\n")
	if err != nil {
		t.Fatalf("LoadText error: %v", err)
	}

	// One placement-only step split into color groups plus a trailing
	// leaf step.
	if len(main.Steps) != 3 {
		t.Fatalf("got %d steps after normalization, want 3", len(main.Steps))
	}
	if main.Steps[0].Placements[0].ID != "sub.ldr" || main.Steps[0].Placements[0].Color != 4 {
		t.Errorf("step 0 = %+v", main.Steps[0].Placements)
	}
	if main.Steps[1].Placements[0].Color != 2 {
		t.Errorf("step 1 = %+v", main.Steps[1].Placements)
	}
	if main.Steps[2].Placements[0].ID != "brick.dat" {
		t.Errorf("step 2 = %+v, want the trailing leaf group", main.Steps[2].Placements)
	}
}
