package signature

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var fixedNow = time.Date(2024, 10, 31, 15, 4, 5, 0, time.UTC)

func newTestService(repo *fakeRepo) (*Service, *fakePool) {
	pool := &fakePool{}
	svc := NewService(pool, repo, "https://sign.example/", nil).
		WithIDGenerator(func() string { return "sr-1" }).
		WithClock(func() time.Time { return fixedNow })
	return svc, pool
}

func validInput() Input {
	return Input{
		AccountID:        "acc-1",
		JournalID:        "jr-1",
		SharedDocumentID: "doc-1",
		SignerName:       "Alice Signer",
		SignerEmail:      "alice@example.com",
		Title:            "Lease",
		Language:         "da",
		ExpirationDays:   14,
	}
}

func TestCreate_Success(t *testing.T) {
	repo := newFakeRepo()
	svc, pool := newTestService(repo)

	res, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !res.Success || res.SignatureRequestID != "sr-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !pool.tx.committed {
		t.Errorf("expected commit to be called")
	}

	rec := repo.records["sr-1"]
	if rec.Status != StatusPending {
		t.Errorf("expected Pending, got %s", rec.Status)
	}
	if rec.SigningLink != "https://sign.example/sign/sr-1" {
		t.Errorf("unexpected signing link %q", rec.SigningLink)
	}
	if repo.lastInsert.ExpirationDate != fixedNow.AddDate(0, 0, 14) {
		t.Errorf("unexpected expiration %v", repo.lastInsert.ExpirationDate)
	}
	if repo.lastInsert.Input.Environment != EnvironmentSandbox {
		t.Errorf("expected default environment sandbox, got %q", repo.lastInsert.Input.Environment)
	}
	if len(repo.outbox) != 1 || repo.outbox[0] != OutboxTopicCreated {
		t.Errorf("expected created outbox message, got %v", repo.outbox)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	repo := newFakeRepo()
	svc, pool := newTestService(repo)

	in := validInput()
	in.SignerEmail = ""
	in.ExpirationDays = 3

	res, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(res.ErrorMessage, "SignerEmail is required") || !strings.Contains(res.ErrorMessage, "ExpirationDays must be one of") {
		t.Fatalf("unexpected message %q", res.ErrorMessage)
	}
	if pool.tx != nil {
		t.Fatal("expected no transaction for invalid input")
	}
}

func TestCreate_ActiveRequestBlocks(t *testing.T) {
	repo := newFakeRepo()
	repo.records["existing"] = Record{ID: "existing", SharedDocumentID: "doc-1", Status: StatusOpened}
	svc, pool := newTestService(repo)

	res, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Success || res.ErrorMessage != msgActiveExists {
		t.Fatalf("unexpected result %+v", res)
	}
	if pool.tx.committed {
		t.Error("expected no commit")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback")
	}
}

func TestCreate_UniqueViolationMapsToBusinessFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.insertErr = ErrActiveRequestExists
	svc, _ := newTestService(repo)

	res, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Success || res.ErrorMessage != msgActiveExists {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCancel(t *testing.T) {
	repo := newFakeRepo()
	repo.records["sent"] = Record{ID: "sent", Status: StatusSent}
	repo.records["signed"] = Record{ID: "signed", Status: StatusSigned}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	res, err := svc.Cancel(ctx, "sent")
	if err != nil || !res.Success {
		t.Fatalf("expected success, got %+v, %v", res, err)
	}
	if repo.records["sent"].Status != StatusRejected {
		t.Fatalf("expected Rejected, got %s", repo.records["sent"].Status)
	}

	res, err = svc.Cancel(ctx, "signed")
	if err != nil || res.Success || res.Message != msgNotCancellable {
		t.Fatalf("expected not-cancellable result, got %+v, %v", res, err)
	}

	res, err = svc.Cancel(ctx, "missing")
	if err != nil || res.Success || res.Message != msgNotFound {
		t.Fatalf("expected not-found result, got %+v, %v", res, err)
	}

	if _, err := svc.Cancel(ctx, ""); !errors.Is(err, ErrMissingRequestID) {
		t.Fatalf("expected ErrMissingRequestID, got %v", err)
	}
}

func TestTransition(t *testing.T) {
	repo := newFakeRepo()
	repo.records["r1"] = Record{ID: "r1", Status: StatusSent}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	if err := svc.Transition(ctx, TransitionParams{RequestID: "r1", NextStatus: StatusSigned}); err != nil {
		t.Fatalf("transition to Signed: %v", err)
	}
	rec := repo.records["r1"]
	if rec.Status != StatusSigned || rec.CompletedDate == "" {
		t.Fatalf("expected Signed with completion date, got %+v", rec)
	}

	if err := svc.Transition(ctx, TransitionParams{RequestID: "r1", NextStatus: StatusSigned}); err != nil {
		t.Fatalf("expected replay to be a no-op, got %v", err)
	}

	err := svc.Transition(ctx, TransitionParams{RequestID: "r1", NextStatus: StatusPending})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	err = svc.Transition(ctx, TransitionParams{RequestID: "r1", NextStatus: Status("Archived")})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unknown status, got %v", err)
	}

	if err := svc.Transition(ctx, TransitionParams{RequestID: "nope", NextStatus: StatusSent}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpireOverdue(t *testing.T) {
	repo := newFakeRepo()
	repo.overdue = []string{"a", "b"}
	repo.records["a"] = Record{ID: "a", Status: StatusPending}
	repo.records["b"] = Record{ID: "b", Status: StatusOpened}
	svc, pool := newTestService(repo)

	n, err := svc.ExpireOverdue(context.Background())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
	if repo.records["a"].Status != StatusExpired || repo.records["b"].Status != StatusExpired {
		t.Fatalf("expected both Expired, got %+v", repo.records)
	}
	if !pool.tx.committed {
		t.Fatal("expected commit")
	}
}

func TestListAndGet_RequireIDs(t *testing.T) {
	svc, _ := newTestService(newFakeRepo())
	if _, err := svc.ListForDocument(context.Background(), ""); !errors.Is(err, ErrMissingDocument) {
		t.Fatalf("expected ErrMissingDocument, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, ErrMissingRequestID) {
		t.Fatalf("expected ErrMissingRequestID, got %v", err)
	}
}

type fakeRepo struct {
	records    map[string]Record
	overdue    []string
	outbox     []string
	insertErr  error
	lastInsert InsertParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]Record)}
}

func (f *fakeRepo) ListByDocument(_ context.Context, documentID string) ([]Record, error) {
	out := []Record{}
	for _, r := range f.records {
		if r.SharedDocumentID == documentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (Record, error) {
	r, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) HasActiveForDocument(_ context.Context, _ pgx.Tx, documentID string) (bool, error) {
	for _, r := range f.records {
		if r.SharedDocumentID == documentID && r.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Insert(_ context.Context, _ pgx.Tx, params InsertParams) (Record, error) {
	if f.insertErr != nil {
		return Record{}, f.insertErr
	}
	f.lastInsert = params
	rec := Record{
		ID:               params.ID,
		SharedDocumentID: params.Input.SharedDocumentID,
		Title:            params.Input.Title,
		SignerName:       params.Input.SignerName,
		SignerEmail:      params.Input.SignerEmail,
		Language:         params.Input.Language,
		Status:           params.Status,
		CreatedDate:      params.CreatedAt.Format(time.RFC3339),
		ExpirationDate:   params.ExpirationDate.Format(time.RFC3339),
		SigningLink:      params.SigningLink,
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepo) LockStatus(_ context.Context, _ pgx.Tx, id string) (Status, error) {
	r, ok := f.records[id]
	if !ok {
		return "", ErrNotFound
	}
	return r.Status, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id string, next Status, completedAt *time.Time) error {
	r, ok := f.records[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = next
	if completedAt != nil {
		r.CompletedDate = completedAt.Format(time.RFC3339)
	}
	f.records[id] = r
	return nil
}

func (f *fakeRepo) ListOverdue(_ context.Context, _ pgx.Tx, _ time.Time) ([]string, error) {
	return f.overdue, nil
}

func (f *fakeRepo) EnqueueOutbox(_ context.Context, _ pgx.Tx, topic string, _ map[string]any) error {
	f.outbox = append(f.outbox, topic)
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
