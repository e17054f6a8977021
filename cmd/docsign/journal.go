package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docsign/binding"
	"docsign/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Navigate to journal documents",
	}
	cmd.AddCommand(newJournalOpenCmd(a))
	return cmd
}

func newJournalOpenCmd(a *app) *cobra.Command {
	var (
		recordID  string
		object    string
		selection string
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the document linked to a journal or account record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := journal.NewResolver(a.client, a.navigator, a.logger.Named("journal"))

			bc := binding.New()
			bc.Set(binding.RecordID, recordID)
			bc.Set(binding.ObjectAPIName, object)
			cancel := r.Bind(cmd.Context(), bc)
			defer cancel()
			r.Wait()

			if !r.Available() {
				return fmt.Errorf("no document linked to %s %s", object, recordID)
			}
			if selection != "" {
				if !hasOption(r.Options(), selection) {
					return fmt.Errorf("journal %s is not linked to %s %s", selection, object, recordID)
				}
				return r.SelectOption(selection)
			}
			if err := r.Activate(); err != nil {
				return err
			}
			if !r.SelectionOpen() {
				return nil
			}

			fmt.Fprintln(a.out, "Several journals link a document. Pick one with --select:")
			for _, o := range r.Options() {
				fmt.Fprintf(a.out, "  %s\t%s\n", o.JournalID, o.URL)
			}
			r.CloseSelection()
			return errSelectionRequired
		},
	}
	cmd.Flags().StringVar(&recordID, "record-id", "", "id of the journal or account record")
	cmd.Flags().StringVar(&object, "object", journal.ObjectJournal, "object API name of the record")
	cmd.Flags().StringVar(&selection, "select", "", "journal id to open when several are linked")
	_ = cmd.MarkFlagRequired("record-id")
	return cmd
}

var errSelectionRequired = errors.New("journal selection required")

func hasOption(opts []journal.Option, journalID string) bool {
	for _, o := range opts {
		if o.JournalID == journalID {
			return true
		}
	}
	return false
}
