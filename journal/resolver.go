package journal

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"docsign/binding"
	"docsign/ui"
)

// OptionSource is the remote call that lists journal options for a record.
type OptionSource interface {
	GetJournalOptions(ctx context.Context, recordID, objectAPIName string) ([]Option, error)
}

// Resolver turns a record context into a document navigation: straight to
// the only option, or through a selection surface when there are several.
type Resolver struct {
	source OptionSource
	nav    ui.Navigator
	logger *zap.Logger

	mu            sync.Mutex
	options       []Option
	selectionOpen bool
	generation    uint64

	inflight sync.WaitGroup
}

func NewResolver(source OptionSource, nav ui.Navigator, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, nav: nav, logger: logger}
}

// Bind reloads options in the background whenever the record id or object
// API name in bc changes.
func (r *Resolver) Bind(ctx context.Context, bc *binding.Context) (cancel func()) {
	return bc.Watch(func() {
		recordID := bc.Get(binding.RecordID)
		objectAPIName := bc.Get(binding.ObjectAPIName)
		gen := r.begin()
		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			r.fetch(ctx, gen, recordID, objectAPIName)
		}()
	}, binding.RecordID, binding.ObjectAPIName)
}

// Wait blocks until background loads started by Bind have finished.
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

// Load fetches options for a record. Failures are logged and leave the
// resolver with no options. A response that arrives after a newer Load has
// started is discarded.
func (r *Resolver) Load(ctx context.Context, recordID, objectAPIName string) {
	r.fetch(ctx, r.begin(), recordID, objectAPIName)
}

// begin issues the generation for a new load. Callers take it before any
// goroutine starts so generations follow the order of context changes.
func (r *Resolver) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.generation
}

func (r *Resolver) fetch(ctx context.Context, gen uint64, recordID, objectAPIName string) {
	opts, err := r.source.GetJournalOptions(ctx, recordID, objectAPIName)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return
	}
	if err != nil {
		r.logger.Error("load journal options",
			zap.String("record_id", recordID),
			zap.String("object_api_name", objectAPIName),
			zap.Error(err))
		r.options = nil
		return
	}
	r.options = append([]Option(nil), opts...)
}

func (r *Resolver) Options() []Option {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Option(nil), r.options...)
}

// Available is false when there is nothing to navigate to.
func (r *Resolver) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.options) > 0
}

func (r *Resolver) SelectionOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectionOpen
}

// Activate navigates directly when exactly one option exists and opens the
// selection surface when there are more.
func (r *Resolver) Activate() error {
	r.mu.Lock()
	switch len(r.options) {
	case 0:
		r.mu.Unlock()
		return nil
	case 1:
		url := r.options[0].URL
		r.mu.Unlock()
		return r.navigate(url)
	default:
		r.selectionOpen = true
		r.mu.Unlock()
		return nil
	}
}

func (r *Resolver) CloseSelection() {
	r.mu.Lock()
	r.selectionOpen = false
	r.mu.Unlock()
}

// SelectOption navigates to the option with the given journal id. Unknown
// ids and options without a URL are ignored.
func (r *Resolver) SelectOption(journalID string) error {
	if journalID == "" {
		return nil
	}

	r.mu.Lock()
	var url string
	for _, o := range r.options {
		if o.JournalID == journalID {
			url = o.URL
			break
		}
	}
	if url == "" {
		r.mu.Unlock()
		return nil
	}
	r.selectionOpen = false
	r.mu.Unlock()

	return r.navigate(url)
}

func (r *Resolver) navigate(url string) error {
	if url == "" {
		return nil
	}
	if err := r.nav.Navigate(url); err != nil {
		r.logger.Error("navigate", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("journal: navigate: %w", err)
	}
	return nil
}
