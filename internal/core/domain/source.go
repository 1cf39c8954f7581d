package domain

import "time"

type SourceType string

const (
	SourceFileText    SourceType = "file-text"
	SourceBinaryDoc   SourceType = "binary-document"
	SourceSpreadsheet SourceType = "spreadsheet"
	SourceWebPage     SourceType = "web-page"
)

type SourceStatus string

const (
	SourcePending   SourceStatus = "pending"
	SourceIngesting SourceStatus = "ingesting"
	SourceReady     SourceStatus = "ready"
	SourceWarning   SourceStatus = "warning"
	SourcePartial   SourceStatus = "partial"
	SourceFailed    SourceStatus = "failed"
)

// Source is the persisted registration of one ingestable origin:
// a stored file, a spreadsheet, a PDF or a web page.
type Source struct {
	ID        string            `json:"id"`
	Type      SourceType        `json:"type"`
	Origin    string            `json:"origin"`
	Namespace string            `json:"namespace,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	Status    SourceStatus      `json:"status"`
	Message   string            `json:"message,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (t SourceType) Valid() bool {
	switch t {
	case SourceFileText, SourceBinaryDoc, SourceSpreadsheet, SourceWebPage:
		return true
	}
	return false
}
