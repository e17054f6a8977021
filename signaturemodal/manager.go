// Package signaturemodal is the view-model behind the signature request
// modal: it loads the requests attached to a shared document, validates and
// submits new ones, cancels and refreshes existing ones, and derives the
// display metadata the host renders.
package signaturemodal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docsign/account"
	"docsign/binding"
	"docsign/signature"
	"docsign/ui"
)

// EventSignatureCreated is dispatched to the host after a successful create.
const EventSignatureCreated = "signaturecreated"

// SignatureCreated is the detail of EventSignatureCreated.
type SignatureCreated struct {
	SignatureRequestID string `json:"signatureRequestId"`
}

// RequestService is the set of remote calls the modal makes.
type RequestService interface {
	CreateSignatureRequest(ctx context.Context, in signature.Input) (signature.CreateResult, error)
	GetSignatureRequestsForDocument(ctx context.Context, sharedDocumentID string) ([]signature.Record, error)
	GetSignatureRequest(ctx context.Context, signatureRequestID string) (signature.Record, error)
	CancelSignatureRequest(ctx context.Context, signatureRequestID string) (signature.CancelResult, error)
}

// AccountReader fetches the account used to pre-fill the signer.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (account.Account, error)
}

// State is the position of the modal in its lifecycle.
type State int

const (
	StateClosed State = iota
	StateListView
	StateNewRequestForm
)

func (s State) String() string {
	switch s {
	case StateListView:
		return "open.list"
	case StateNewRequestForm:
		return "open.new_request_form"
	default:
		return "closed"
	}
}

var (
	errNoDocument = errors.New("signaturemodal: document identity unresolved")
	errStaleLoad  = errors.New("signaturemodal: load superseded")
)

// signer is the last account pre-fill, re-applied when Close resets the form.
type signer struct {
	name  string
	email string
}

// Manager owns the transient state of one modal instance. Remote calls run
// without the lock held.
type Manager struct {
	svc       RequestService
	bc        *binding.Context
	notifier  ui.Notifier
	logger    *zap.Logger
	events    ui.EventSink
	clipboard ui.Clipboard
	accounts  AccountReader
	dates     signature.DateFormatter
	env       string

	mu          sync.Mutex
	isOpen      bool
	showForm    bool
	loading     int
	existing    []signature.Record
	form        Form
	fieldErrors map[Field]string

	// Identity passed explicitly to Open; takes precedence over bc and is
	// cleared on Close.
	docIDOverride   string
	docNameOverride string

	loadGeneration    uint64
	prefillGeneration uint64
	prefilled         *signer
	inflight          sync.WaitGroup
}

func NewManager(svc RequestService, bc *binding.Context, notifier ui.Notifier, logger *zap.Logger) *Manager {
	if bc == nil {
		bc = binding.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		svc:         svc,
		bc:          bc,
		notifier:    notifier,
		logger:      logger,
		dates:       signature.NewDateFormatter(time.Local),
		env:         signature.EnvironmentSandbox,
		form:        defaultForm(),
		fieldErrors: make(map[Field]string),
	}
}

func (m *Manager) WithEvents(sink ui.EventSink) *Manager {
	m.events = sink
	return m
}

func (m *Manager) WithClipboard(c ui.Clipboard) *Manager {
	m.clipboard = c
	return m
}

func (m *Manager) WithAccounts(r AccountReader) *Manager {
	m.accounts = r
	return m
}

// WithEnvironment sets the e-sign environment stamped on new requests.
func (m *Manager) WithEnvironment(env string) *Manager {
	if env != "" {
		m.env = env
	}
	return m
}

func (m *Manager) WithLocation(loc *time.Location) *Manager {
	m.dates = signature.NewDateFormatter(loc)
	return m
}

// Bind pre-fills the signer from the account bound in the context, now and
// whenever the account id changes. Lookups run in the background.
func (m *Manager) Bind(ctx context.Context) (cancel func()) {
	if m.accounts == nil {
		return func() {}
	}
	return m.bc.Watch(func() {
		accountID := m.bc.Get(binding.AccountID)
		m.mu.Lock()
		m.prefillGeneration++
		gen := m.prefillGeneration
		m.mu.Unlock()
		m.inflight.Add(1)
		go func() {
			defer m.inflight.Done()
			m.prefillSigner(ctx, gen, accountID)
		}()
	}, binding.AccountID)
}

// Wait blocks until background work started by Bind has finished.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// prefillSigner applies the account lookup unless the bound account changed
// while it was in flight.
func (m *Manager) prefillSigner(ctx context.Context, gen uint64, accountID string) {
	acc, err := m.accounts.GetAccount(ctx, accountID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.prefillGeneration || m.bc.Get(binding.AccountID) != accountID {
		m.logger.Debug("discarding superseded account lookup", zap.String("account_id", accountID))
		return
	}
	if err != nil {
		m.logger.Warn("could not load account", zap.String("account_id", accountID), zap.Error(err))
		if p := m.prefilled; p != nil && m.form.SignerName == p.name && m.form.SignerEmail == p.email {
			m.form.SignerName = ""
			m.form.SignerEmail = ""
		}
		m.prefilled = nil
		return
	}
	m.prefilled = &signer{name: acc.FullName(), email: acc.PersonEmail}
	m.applySignerLocked()
}

func (m *Manager) applySignerLocked() {
	if m.prefilled == nil {
		return
	}
	m.form.SignerName = m.prefilled.name
	m.form.SignerEmail = m.prefilled.email
}

// Open shows the modal for a document and loads its requests. Non-empty
// arguments override the host-bound documentId/documentName.
func (m *Manager) Open(ctx context.Context, documentID, documentName string) {
	m.mu.Lock()
	if documentID != "" {
		m.docIDOverride = documentID
	}
	if documentName != "" {
		m.docNameOverride = documentName
	}
	m.isOpen = true
	m.showForm = false
	m.mu.Unlock()

	m.LoadExistingRequests(ctx)
}

// Close hides the modal and forgets the identity passed to Open, so a later
// Open without arguments falls back to the host-bound context. The form goes
// back to its defaults with the bound account's signer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isOpen = false
	m.showForm = false
	m.docIDOverride = ""
	m.docNameOverride = ""
	m.existing = nil
	m.form = defaultForm()
	m.applySignerLocked()
	m.fieldErrors = make(map[Field]string)
	m.loadGeneration++
}

func (m *Manager) documentIDLocked() string {
	if m.docIDOverride != "" {
		return m.docIDOverride
	}
	return m.bc.Get(binding.DocumentID)
}

func (m *Manager) documentNameLocked() string {
	if m.docNameOverride != "" {
		return m.docNameOverride
	}
	return m.bc.Get(binding.DocumentName)
}

func (m *Manager) DocumentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.documentIDLocked()
}

func (m *Manager) DocumentName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.documentNameLocked()
}

// LoadExistingRequests replaces the request list with a fresh snapshot.
func (m *Manager) LoadExistingRequests(ctx context.Context) {
	_ = m.load(ctx)
}

// load returns nil only when its snapshot was applied. A snapshot superseded
// by a newer load or a Close yields errStaleLoad.
func (m *Manager) load(ctx context.Context) error {
	m.mu.Lock()
	documentID := m.documentIDLocked()
	if documentID == "" {
		m.mu.Unlock()
		m.logger.Warn("load signature requests skipped: no document id")
		return errNoDocument
	}
	m.loadGeneration++
	gen := m.loadGeneration
	m.loading++
	m.mu.Unlock()

	records, err := m.svc.GetSignatureRequestsForDocument(ctx, documentID)

	m.mu.Lock()
	m.loading--
	if gen != m.loadGeneration {
		m.mu.Unlock()
		m.logger.Debug("discarding stale signature request snapshot", zap.String("document_id", documentID))
		return errStaleLoad
	}
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("load signature requests", zap.String("document_id", documentID), zap.Error(err))
		m.notify(ui.VariantError, "Could not load existing requests")
		return err
	}
	m.existing = append([]signature.Record(nil), records...)
	m.mu.Unlock()
	return nil
}

// ShowNewForm switches to the new-request form when no active request
// blocks creation. The title defaults to the document name.
func (m *Manager) ShowNewForm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOpen || signature.HasActive(m.existing) {
		return false
	}
	m.showForm = true
	if strings.TrimSpace(m.form.Title) == "" {
		m.form.Title = m.documentNameLocked()
	}
	return true
}

// CancelNewForm discards the form view without submitting.
func (m *Manager) CancelNewForm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showForm = false
	m.fieldErrors = make(map[Field]string)
}

// SetField assigns one form input by identifier.
func (m *Manager) SetField(field Field, value string) error {
	set, ok := setters[field]
	if !ok {
		return ErrUnknownField
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := set(&m.form, value); err != nil {
		return err
	}
	delete(m.fieldErrors, field)
	return nil
}

// SubmitNewRequest validates the form and creates a request. It reports
// whether a request was created.
func (m *Manager) SubmitNewRequest(ctx context.Context) bool {
	m.mu.Lock()
	m.fieldErrors = validateForm(m.form)
	if len(m.fieldErrors) > 0 {
		m.mu.Unlock()
		return false
	}
	documentID := m.documentIDLocked()
	if documentID == "" {
		m.mu.Unlock()
		m.notify(ui.VariantError, "No document selected for the signature request")
		return false
	}
	title := strings.TrimSpace(m.form.Title)
	if title == "" {
		title = m.documentNameLocked()
	}
	in := signature.Input{
		AccountID:        m.bc.Get(binding.AccountID),
		JournalID:        m.bc.Get(binding.JournalID),
		SharedDocumentID: documentID,
		SignerName:       m.form.SignerName,
		SignerEmail:      m.form.SignerEmail,
		Title:            title,
		Language:         m.form.Language,
		ExpirationDays:   m.form.ExpirationDays,
		MarketUnit:       m.bc.Get(binding.MarketUnit),
		Environment:      m.env,
	}
	m.loading++
	m.mu.Unlock()
	defer m.doneLoading()

	res, err := m.svc.CreateSignatureRequest(ctx, in)
	if err != nil {
		m.logger.Error("create signature request", zap.String("document_id", documentID), zap.Error(err))
		m.notify(ui.VariantError, errorMessage(err, "An unexpected error occurred"))
		return false
	}
	if !res.Success {
		msg := res.ErrorMessage
		if msg == "" {
			msg = "Failed to create request"
		}
		m.notify(ui.VariantError, msg)
		return false
	}

	m.notify(ui.VariantSuccess, "Signature request created successfully")
	m.mu.Lock()
	m.showForm = false
	m.mu.Unlock()

	m.LoadExistingRequests(ctx)

	if m.events != nil {
		m.events.Dispatch(ui.Event{
			Name:   EventSignatureCreated,
			Detail: SignatureCreated{SignatureRequestID: res.SignatureRequestID},
		})
	}
	return true
}

// CancelRequest withdraws a request and reloads the list on success.
func (m *Manager) CancelRequest(ctx context.Context, requestID string) {
	if requestID == "" {
		return
	}
	m.startLoading()
	defer m.doneLoading()

	res, err := m.svc.CancelSignatureRequest(ctx, requestID)
	if err != nil {
		m.logger.Error("cancel signature request", zap.String("signature_request_id", requestID), zap.Error(err))
		m.notify(ui.VariantError, "Could not cancel request")
		return
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Failed to cancel"
		}
		m.notify(ui.VariantError, msg)
		return
	}

	m.notify(ui.VariantSuccess, "Signature request cancelled")
	m.LoadExistingRequests(ctx)
}

// RefreshStatus re-reads one request and then the whole list. The success
// toast is shown only when both calls succeeded.
func (m *Manager) RefreshStatus(ctx context.Context, requestID string) {
	if requestID == "" {
		return
	}
	m.startLoading()
	defer m.doneLoading()

	if _, err := m.svc.GetSignatureRequest(ctx, requestID); err != nil {
		m.logger.Error("refresh signature request", zap.String("signature_request_id", requestID), zap.Error(err))
		m.notify(ui.VariantError, "Could not refresh status")
		return
	}
	if err := m.load(ctx); err != nil {
		return
	}
	m.notify(ui.VariantSuccess, "Status refreshed")
}

// CopyLink puts a signing link on the clipboard.
func (m *Manager) CopyLink(url string) {
	if url == "" {
		return
	}
	if m.clipboard == nil {
		m.notify(ui.VariantError, "Could not copy link")
		return
	}
	if err := m.clipboard.WriteText(url); err != nil {
		m.logger.Warn("copy signing link", zap.Error(err))
		m.notify(ui.VariantError, "Could not copy link")
		return
	}
	m.notify(ui.VariantSuccess, "Signing link copied to clipboard")
}

func (m *Manager) startLoading() {
	m.mu.Lock()
	m.loading++
	m.mu.Unlock()
}

func (m *Manager) doneLoading() {
	m.mu.Lock()
	if m.loading > 0 {
		m.loading--
	}
	m.mu.Unlock()
}

func (m *Manager) notify(variant ui.Variant, message string) {
	if m.notifier == nil {
		return
	}
	title := "Success"
	if variant == ui.VariantError {
		title = "Error"
	}
	m.notifier.Notify(ui.Toast{Title: title, Message: message, Variant: variant})
}

// userMessager is implemented by transport errors that carry a message
// meant for display.
type userMessager interface {
	UserMessage() string
}

func errorMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
