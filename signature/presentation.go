package signature

import (
	"strings"
	"time"
)

var badgeClasses = map[Status]string{
	StatusNew:       "slds-badge",
	StatusPending:   "slds-badge slds-badge_inverse",
	StatusSent:      "slds-badge slds-theme_info",
	StatusOpened:    "slds-badge slds-theme_warning",
	StatusSigned:    "slds-badge slds-theme_success",
	StatusCompleted: "slds-badge slds-theme_success",
	StatusRejected:  "slds-badge slds-theme_error",
	StatusExpired:   "slds-badge slds-theme_shade",
	StatusFailed:    "slds-badge slds-theme_error",
}

const defaultBadgeClass = "slds-badge"

// BadgeClass maps a status to its badge style; unknown statuses get the
// default badge.
func BadgeClass(status Status) string {
	if c, ok := badgeClasses[status]; ok {
		return c
	}
	return defaultBadgeClass
}

// dateLayout is the Danish day-month-year order (dd.mm.yyyy).
const dateLayout = "02.01.2006"

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DateFormatter renders wire dates in a fixed location.
type DateFormatter struct {
	loc *time.Location
}

func NewDateFormatter(loc *time.Location) DateFormatter {
	if loc == nil {
		loc = time.Local
	}
	return DateFormatter{loc: loc}
}

// Format returns value as dd.mm.yyyy, or "" when value is empty or not a
// recognisable date. It never panics.
func (f DateFormatter) Format(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	loc := f.loc
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range inputLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == "2006-01-02" || layout == "2006-01-02T15:04:05" {
			t, err = time.ParseInLocation(layout, value, loc)
		} else {
			t, err = time.Parse(layout, value)
		}
		if err == nil {
			return t.In(loc).Format(dateLayout)
		}
	}
	return ""
}

// FormatDate formats with the process-local time zone.
func FormatDate(value string) string {
	return NewDateFormatter(time.Local).Format(value)
}

// RequestView is a record decorated with display metadata. The embedded
// record is a copy; the source is never mutated.
type RequestView struct {
	Record
	StatusBadgeClass        string
	FormattedCreatedDate    string
	FormattedExpirationDate string
	FormattedCompletedDate  string
	CanCancel               bool
	HasLink                 bool
	IsActive                bool
}

func (f DateFormatter) View(r Record) RequestView {
	return RequestView{
		Record:                  r,
		StatusBadgeClass:        BadgeClass(r.Status),
		FormattedCreatedDate:    f.Format(r.CreatedDate),
		FormattedExpirationDate: f.Format(r.ExpirationDate),
		FormattedCompletedDate:  f.Format(r.CompletedDate),
		CanCancel:               r.Status.Cancellable(),
		HasLink:                 r.SigningLink != "",
		IsActive:                r.Status.Active(),
	}
}

func (f DateFormatter) Views(records []Record) []RequestView {
	out := make([]RequestView, 0, len(records))
	for _, r := range records {
		out = append(out, f.View(r))
	}
	return out
}

// HasActive reports whether any record blocks creation of a new request.
func HasActive(records []Record) bool {
	for _, r := range records {
		if r.Status.Active() {
			return true
		}
	}
	return false
}
