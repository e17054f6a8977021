package signature

// Status is the server-driven lifecycle state of a signature request.
type Status string

const (
	StatusNew       Status = "New"
	StatusPending   Status = "Pending"
	StatusSent      Status = "Sent"
	StatusOpened    Status = "Opened"
	StatusSigned    Status = "Signed"
	StatusCompleted Status = "Completed"
	StatusRejected  Status = "Rejected"
	StatusExpired   Status = "Expired"
	StatusFailed    Status = "Failed"
)

// Active reports whether a request in this status blocks a competing request
// for the same document.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusSent, StatusOpened:
		return true
	default:
		return false
	}
}

// Cancellable reports whether the requester may still withdraw the request.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusSent
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusSent, StatusOpened, StatusSigned,
		StatusCompleted, StatusRejected, StatusExpired, StatusFailed:
		return true
	default:
		return false
	}
}

// Record is a snapshot of a server-owned signature request. Date fields are
// ISO-8601 strings as they travel on the wire; empty means unset.
type Record struct {
	ID               string `json:"Id"`
	SharedDocumentID string `json:"Shared_Document__c,omitempty"`
	Title            string `json:"Title__c,omitempty"`
	SignerName       string `json:"Signer_Name__c,omitempty"`
	SignerEmail      string `json:"Signer_Email__c,omitempty"`
	Language         string `json:"Language__c,omitempty"`
	Status           Status `json:"Status__c"`
	CreatedDate      string `json:"CreatedDate,omitempty"`
	ExpirationDate   string `json:"Expiration_Date__c,omitempty"`
	CompletedDate    string `json:"Completed_Date__c,omitempty"`
	SigningLink      string `json:"Signing_Link__c,omitempty"`
}

// Input is the payload of a create call.
type Input struct {
	AccountID        string `json:"accountId"`
	JournalID        string `json:"journalId"`
	SharedDocumentID string `json:"sharedDocumentId" validate:"required"`
	SignerName       string `json:"signerName" validate:"required"`
	SignerEmail      string `json:"signerEmail" validate:"required,email"`
	Title            string `json:"title"`
	Language         string `json:"language" validate:"required,oneof=da en sv no"`
	ExpirationDays   int    `json:"expirationDays" validate:"required,oneof=7 14 30 60"`
	MarketUnit       string `json:"marketUnit"`
	Environment      string `json:"environment" validate:"omitempty,oneof=sandbox production"`
}

// CreateResult reports a business-level outcome; Success=false with an
// ErrorMessage is not a transport error.
type CreateResult struct {
	Success            bool   `json:"success"`
	SignatureRequestID string `json:"signatureRequestId,omitempty"`
	ErrorMessage       string `json:"errorMessage,omitempty"`
}

type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Languages and expiration windows accepted by Input.
var (
	Languages      = []string{"da", "en", "sv", "no"}
	ExpirationDays = []int{7, 14, 30, 60}
)

const (
	DefaultLanguage       = "da"
	DefaultExpirationDays = 14
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

const (
	OutboxTopicCreated       = "signature_request.created"
	OutboxTopicCancelled     = "signature_request.cancelled"
	OutboxTopicStatusChanged = "signature_request.status_changed"
)
