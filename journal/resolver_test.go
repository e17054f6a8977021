package journal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/binding"
)

type stubSource struct {
	mu      sync.Mutex
	options []Option
	err     error
	calls   []string
}

func (s *stubSource) GetJournalOptions(_ context.Context, recordID, objectAPIName string) ([]Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, recordID+"/"+objectAPIName)
	return s.options, s.err
}

type recordingNavigator struct {
	urls []string
	err  error
}

func (n *recordingNavigator) Navigate(url string) error {
	n.urls = append(n.urls, url)
	return n.err
}

func TestResolver_SingleOptionNavigatesDirectly(t *testing.T) {
	nav := &recordingNavigator{}
	r := NewResolver(&stubSource{options: []Option{{JournalID: "a", URL: "u1"}}}, nav, nil)
	r.Load(context.Background(), "001", ObjectAccount)

	require.NoError(t, r.Activate())
	assert.Equal(t, []string{"u1"}, nav.urls)
	assert.False(t, r.SelectionOpen())
}

func TestResolver_MultipleOptionsOpenSelection(t *testing.T) {
	nav := &recordingNavigator{}
	r := NewResolver(&stubSource{options: []Option{{JournalID: "a", URL: "u1"}, {JournalID: "b", URL: "u2"}}}, nav, nil)
	r.Load(context.Background(), "001", ObjectAccount)

	require.NoError(t, r.Activate())
	assert.True(t, r.SelectionOpen())
	assert.Empty(t, nav.urls)

	require.NoError(t, r.SelectOption("b"))
	assert.Equal(t, []string{"u2"}, nav.urls)
	assert.False(t, r.SelectionOpen())
}

func TestResolver_NoOptionsIsNoop(t *testing.T) {
	nav := &recordingNavigator{}
	r := NewResolver(&stubSource{}, nav, nil)
	r.Load(context.Background(), "001", ObjectAccount)

	assert.False(t, r.Available())
	require.NoError(t, r.Activate())
	assert.Empty(t, nav.urls)
	assert.False(t, r.SelectionOpen())
}

func TestResolver_SelectUnknownOrBlankIsNoop(t *testing.T) {
	nav := &recordingNavigator{}
	r := NewResolver(&stubSource{options: []Option{{JournalID: "a", URL: ""}, {JournalID: "b", URL: "u2"}}}, nav, nil)
	r.Load(context.Background(), "001", ObjectAccount)
	require.NoError(t, r.Activate())

	require.NoError(t, r.SelectOption("missing"))
	require.NoError(t, r.SelectOption("a"))
	require.NoError(t, r.SelectOption(""))
	assert.Empty(t, nav.urls)
	assert.True(t, r.SelectionOpen(), "surface stays open when nothing was selected")

	r.CloseSelection()
	assert.False(t, r.SelectionOpen())
}

func TestResolver_FetchErrorDisablesFeature(t *testing.T) {
	src := &stubSource{options: []Option{{JournalID: "a", URL: "u1"}}}
	r := NewResolver(src, &recordingNavigator{}, nil)
	r.Load(context.Background(), "001", ObjectAccount)
	require.True(t, r.Available())

	src.err = errors.New("boom")
	r.Load(context.Background(), "001", ObjectAccount)
	assert.False(t, r.Available())
	assert.Empty(t, r.Options())
}

func TestResolver_NavigateErrorIsReturned(t *testing.T) {
	nav := &recordingNavigator{err: errors.New("no browser")}
	r := NewResolver(&stubSource{options: []Option{{JournalID: "a", URL: "u1"}}}, nav, nil)
	r.Load(context.Background(), "001", ObjectAccount)

	assert.Error(t, r.Activate())
}

func TestResolver_BindReloadsOnContextChange(t *testing.T) {
	src := &stubSource{options: []Option{{JournalID: "a", URL: "u1"}}}
	r := NewResolver(src, &recordingNavigator{}, nil)
	bc := binding.New()
	cancel := r.Bind(context.Background(), bc)
	defer cancel()

	bc.Set(binding.RecordID, "001")
	r.Wait()
	assert.Empty(t, src.calls, "no fetch until both inputs resolve")

	bc.Set(binding.ObjectAPIName, ObjectAccount)
	r.Wait()
	bc.Set(binding.RecordID, "002")
	r.Wait()

	assert.Equal(t, []string{"001/Account", "002/Account"}, src.calls)
	assert.True(t, r.Available())
}

// blockingSource lets a test control the order in which responses land.
type blockingSource struct {
	responses map[string]chan []Option
}

func (b *blockingSource) GetJournalOptions(_ context.Context, recordID, _ string) ([]Option, error) {
	return <-b.responses[recordID], nil
}

func TestResolver_StaleResponseDiscarded(t *testing.T) {
	src := &blockingSource{responses: map[string]chan []Option{
		"old": make(chan []Option, 1),
		"new": make(chan []Option, 1),
	}}
	r := NewResolver(src, &recordingNavigator{}, nil)

	oldDone := make(chan struct{})
	go func() {
		r.Load(context.Background(), "old", ObjectAccount)
		close(oldDone)
	}()

	// Wait until the old load has registered its generation.
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.generation == 1
	}, timeout, tick)

	src.responses["new"] <- []Option{{JournalID: "n", URL: "new-url"}}
	r.Load(context.Background(), "new", ObjectAccount)

	src.responses["old"] <- []Option{{JournalID: "o", URL: "old-url"}}
	<-oldDone

	assert.Equal(t, []Option{{JournalID: "n", URL: "new-url"}}, r.Options())
}

// echoSource answers with one option named after the record.
type echoSource struct{}

func (echoSource) GetJournalOptions(_ context.Context, recordID, _ string) ([]Option, error) {
	return []Option{{JournalID: recordID, URL: "https://docs.example.com/" + recordID}}, nil
}

func TestResolver_BindBackToBackChangesKeepNewest(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := NewResolver(echoSource{}, &recordingNavigator{}, nil)
		bc := binding.New()
		bc.Set(binding.ObjectAPIName, ObjectJournal)
		cancel := r.Bind(context.Background(), bc)

		bc.Set(binding.RecordID, "old")
		bc.Set(binding.RecordID, "new")
		r.Wait()
		cancel()

		require.Equal(t, []Option{{JournalID: "new", URL: "https://docs.example.com/new"}}, r.Options(), "iteration %d", i)
	}
}

func TestResolver_BindSlowSupersededLoadIsDropped(t *testing.T) {
	src := &blockingSource{responses: map[string]chan []Option{
		"old": make(chan []Option, 1),
		"new": make(chan []Option, 1),
	}}
	r := NewResolver(src, &recordingNavigator{}, nil)
	bc := binding.New()
	bc.Set(binding.ObjectAPIName, ObjectJournal)
	cancel := r.Bind(context.Background(), bc)
	defer cancel()

	bc.Set(binding.RecordID, "old")
	bc.Set(binding.RecordID, "new")

	src.responses["new"] <- []Option{{JournalID: "n", URL: "new-url"}}
	require.Eventually(t, func() bool { return r.Available() }, timeout, tick)
	src.responses["old"] <- []Option{{JournalID: "o", URL: "old-url"}}
	r.Wait()

	assert.Equal(t, []Option{{JournalID: "n", URL: "new-url"}}, r.Options())
}
