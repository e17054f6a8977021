package journal

// Option is one navigable document target for a journal.
type Option struct {
	JournalID string `json:"journalId"`
	URL       string `json:"url"`
}

// Object API names a record context may carry.
const (
	ObjectJournal = "Journal__c"
	ObjectAccount = "Account"
)
