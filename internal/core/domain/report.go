package domain

import "time"

type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestPartial IngestStatus = "partial_success"
	IngestWarning IngestStatus = "warning"
	IngestError   IngestStatus = "error"
)

// IngestReport is the terminal state of one ingestion run.
type IngestReport struct {
	SourceID        string        `json:"source_id"`
	Status          IngestStatus  `json:"status"`
	Message         string        `json:"message,omitempty"`
	ChunksProcessed int           `json:"chunks_processed"`
	VectorsUploaded int           `json:"vectors_uploaded"`
	Duration        time.Duration `json:"duration"`
}

func (r IngestReport) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

// SourceStatus maps the run outcome onto the persisted source state.
func (r IngestReport) SourceStatus() SourceStatus {
	switch r.Status {
	case IngestSuccess:
		return SourceReady
	case IngestPartial:
		return SourcePartial
	case IngestWarning:
		return SourceWarning
	default:
		return SourceFailed
	}
}
