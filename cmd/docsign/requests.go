package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docsign/binding"
	"docsign/signaturemodal"
	"docsign/ui"
)

var errReported = errors.New("request failed")

// failureNotifier forwards toasts and remembers whether any was an error, so
// a command can exit non-zero after the message has been printed.
type failureNotifier struct {
	next ui.Notifier

	mu     sync.Mutex
	failed bool
}

func (n *failureNotifier) Notify(t ui.Toast) {
	if t.Variant == ui.VariantError {
		n.mu.Lock()
		n.failed = true
		n.mu.Unlock()
	}
	n.next.Notify(t)
}

func (n *failureNotifier) err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failed {
		return errReported
	}
	return nil
}

// documentFlags identify the shared document a requests subcommand acts on.
type documentFlags struct {
	documentID   string
	documentName string
}

func (f *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.documentID, "document", "", "shared document id")
	cmd.Flags().StringVar(&f.documentName, "document-name", "", "document name used as the default title")
	_ = cmd.MarkFlagRequired("document")
}

func (a *app) newManager(bc *binding.Context) (*signaturemodal.Manager, *failureNotifier, error) {
	loc, err := a.cfg.LoadLocation()
	if err != nil {
		return nil, nil, err
	}
	n := &failureNotifier{next: a.notifier()}
	m := signaturemodal.NewManager(a.client, bc, n, a.logger.Named("signaturemodal")).
		WithAccounts(a.client).
		WithClipboard(a.clipboard).
		WithEnvironment(a.cfg.Signing.Environment).
		WithLocation(loc)
	return m, n, nil
}

func (a *app) openManager(ctx context.Context, doc documentFlags) (*signaturemodal.Manager, *failureNotifier, error) {
	bc := binding.New()
	bc.Set(binding.DocumentID, doc.documentID)
	bc.Set(binding.DocumentName, doc.documentName)
	m, n, err := a.newManager(bc)
	if err != nil {
		return nil, nil, err
	}
	m.Open(ctx, "", "")
	return m, n, nil
}

func newRequestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"req"},
		Short:   "Manage signature requests for a shared document",
	}
	cmd.AddCommand(
		newRequestsListCmd(a),
		newRequestsCreateCmd(a),
		newRequestsCancelCmd(a),
		newRequestsRefreshCmd(a),
		newRequestsCopyLinkCmd(a),
	)
	return cmd
}

func newRequestsListCmd(a *app) *cobra.Command {
	var doc documentFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the signature requests of a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, n, err := a.openManager(cmd.Context(), doc)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := n.err(); err != nil {
				return err
			}
			printRequests(a.out, m)
			return nil
		},
	}
	doc.register(cmd)
	return cmd
}

func newRequestsCreateCmd(a *app) *cobra.Command {
	var (
		doc        documentFlags
		accountID  string
		journalID  string
		marketUnit string
		values     = make(map[signaturemodal.Field]*string)
	)
	formFlags := []struct {
		field signaturemodal.Field
		name  string
		usage string
	}{
		{signaturemodal.FieldSignerName, "signer-name", "signer full name (defaults to the account name)"},
		{signaturemodal.FieldSignerEmail, "signer-email", "signer email (defaults to the account email)"},
		{signaturemodal.FieldTitle, "title", "request title (defaults to the document name)"},
		{signaturemodal.FieldLanguage, "language", "signing language: " + optionValues(signaturemodal.LanguageOptions())},
		{signaturemodal.FieldExpirationDays, "days", "days until the request expires: " + optionValues(signaturemodal.ExpirationOptions())},
	}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a signature request for a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bc := binding.New()
			bc.Set(binding.DocumentID, doc.documentID)
			bc.Set(binding.DocumentName, doc.documentName)
			bc.Set(binding.AccountID, accountID)
			bc.Set(binding.JournalID, journalID)
			bc.Set(binding.MarketUnit, marketUnit)

			m, n, err := a.newManager(bc)
			if err != nil {
				return err
			}
			var createdID string
			m.WithEvents(ui.EventSinkFunc(func(e ui.Event) {
				if created, ok := e.Detail.(signaturemodal.SignatureCreated); ok {
					createdID = created.SignatureRequestID
				}
			}))
			cancel := m.Bind(ctx)
			defer cancel()
			m.Wait()

			m.Open(ctx, "", "")
			defer m.Close()
			if err := n.err(); err != nil {
				return err
			}
			if !m.ShowNewForm() {
				printRequests(a.out, m)
				return errors.New("an active signature request already exists for this document")
			}

			for _, f := range formFlags {
				if !cmd.Flags().Changed(f.name) {
					continue
				}
				if err := m.SetField(f.field, *values[f.field]); err != nil {
					return err
				}
			}

			if !m.SubmitNewRequest(ctx) {
				printFieldErrors(a.out, m.FieldErrors())
				if err := n.err(); err != nil {
					return err
				}
				return errors.New("signature request form is invalid")
			}
			fmt.Fprintf(a.out, "Created signature request %s\n", createdID)
			printRequests(a.out, m)
			return nil
		},
	}
	doc.register(cmd)
	cmd.Flags().StringVar(&accountID, "account", "", "person account id of the signer")
	cmd.Flags().StringVar(&journalID, "journal", "", "journal id the document belongs to")
	cmd.Flags().StringVar(&marketUnit, "market-unit", "", "market unit of the request")
	for _, f := range formFlags {
		v := new(string)
		values[f.field] = v
		cmd.Flags().StringVar(v, f.name, "", f.usage)
	}
	return cmd
}

func newRequestsCancelCmd(a *app) *cobra.Command {
	var (
		doc       documentFlags
		requestID string
	)
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an active signature request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, n, err := a.openManager(cmd.Context(), doc)
			if err != nil {
				return err
			}
			defer m.Close()
			m.CancelRequest(cmd.Context(), requestID)
			if err := n.err(); err != nil {
				return err
			}
			printRequests(a.out, m)
			return nil
		},
	}
	doc.register(cmd)
	cmd.Flags().StringVar(&requestID, "request", "", "signature request id")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func newRequestsRefreshCmd(a *app) *cobra.Command {
	var (
		doc       documentFlags
		requestID string
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the status of a signature request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, n, err := a.openManager(cmd.Context(), doc)
			if err != nil {
				return err
			}
			defer m.Close()
			m.RefreshStatus(cmd.Context(), requestID)
			if err := n.err(); err != nil {
				return err
			}
			printRequests(a.out, m)
			return nil
		},
	}
	doc.register(cmd)
	cmd.Flags().StringVar(&requestID, "request", "", "signature request id")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func newRequestsCopyLinkCmd(a *app) *cobra.Command {
	var (
		doc       documentFlags
		requestID string
	)
	cmd := &cobra.Command{
		Use:   "copy-link",
		Short: "Copy the signing link of a request to the clipboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, n, err := a.openManager(cmd.Context(), doc)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := n.err(); err != nil {
				return err
			}
			for _, v := range m.Requests() {
				if v.ID != requestID {
					continue
				}
				if !v.HasLink {
					return fmt.Errorf("signature request %s has no signing link", requestID)
				}
				m.CopyLink(v.SigningLink)
				return n.err()
			}
			return fmt.Errorf("signature request %s not found on document %s", requestID, doc.documentID)
		},
	}
	doc.register(cmd)
	cmd.Flags().StringVar(&requestID, "request", "", "signature request id")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func printRequests(w io.Writer, m *signaturemodal.Manager) {
	fmt.Fprintln(w, m.ModalTitle())
	views := m.Requests()
	if len(views) == 0 {
		fmt.Fprintln(w, "No signature requests.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSIGNER\tCREATED\tEXPIRES\tCOMPLETED\tLINK")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s <%s>\t%s\t%s\t%s\t%s\n",
			v.ID, v.Status, v.SignerName, v.SignerEmail,
			dash(v.FormattedCreatedDate), dash(v.FormattedExpirationDate), dash(v.FormattedCompletedDate),
			dash(v.SigningLink))
	}
	_ = tw.Flush()
	if !m.CanCreateNew() {
		fmt.Fprintln(w, "An active request blocks new requests until it is completed, cancelled or expired.")
	}
}

func printFieldErrors(w io.Writer, errs map[signaturemodal.Field]string) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, errs[signaturemodal.Field(f)])
	}
}

func optionValues(opts []signaturemodal.Option) string {
	vals := make([]string, 0, len(opts))
	for _, o := range opts {
		vals = append(vals, o.Value)
	}
	return strings.Join(vals, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
