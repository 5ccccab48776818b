package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunProgressInfo carries per-symbol progress for a pipeline run
type RunProgressInfo struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Symbol    string `json:"symbol,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RunStatusData contains data for pipeline run lifecycle events
type RunStatusData struct {
	RunID         string           `json:"run_id"`
	Status        string           `json:"status"` // "started", "progress", "completed", "partial", "failed"
	SymbolsTotal  int              `json:"symbols_total,omitempty"`
	SymbolsOK     int              `json:"symbols_ok,omitempty"`
	SymbolsFailed int              `json:"symbols_failed,omitempty"`
	Progress      *RunProgressInfo `json:"progress,omitempty"`
	Error         string           `json:"error,omitempty"`
	Duration      float64          `json:"duration,omitempty"` // seconds
	Timestamp     time.Time        `json:"timestamp"`
}

// EventType returns the event type for RunStatusData
// Note: The actual event type is determined by the Status field
func (d *RunStatusData) EventType() EventType {
	switch d.Status {
	case "progress":
		return RunProgress
	case "completed", "partial":
		return RunCompleted
	case "failed":
		return RunFailed
	default:
		return RunStarted
	}
}

// PanelUpdatedData contains data for PanelUpdated events
type PanelUpdatedData struct {
	Source  string `json:"source"` // "csv" or "json"
	Symbols int    `json:"symbols"`
	Rows    int    `json:"rows"`
}

// EventType returns the event type for PanelUpdatedData
func (d *PanelUpdatedData) EventType() EventType {
	return PanelUpdated
}

// CorrelationUpdatedData contains data for CorrelationUpdated events
type CorrelationUpdatedData struct {
	Matrix       string `json:"matrix"` // "features" or "symbols"
	Size         int    `json:"size"`   // matrix dimension
	Observations int    `json:"observations"`
}

// EventType returns the event type for CorrelationUpdatedData
func (d *CorrelationUpdatedData) EventType() EventType {
	return CorrelationUpdated
}

// JobRunData contains data for scheduled job lifecycle events
type JobRunData struct {
	JobName   string    `json:"job_name"`
	Status    string    `json:"status"` // "started", "completed", "failed"
	Duration  float64   `json:"duration,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType returns the event type for JobRunData
// Note: The actual event type is determined by the Status field
func (d *JobRunData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	Databases int    `json:"databases"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// EventWithData is the wire form of an event, used by the websocket
// endpoint and anything else that serializes events as JSON.
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// NewEventWithData builds the wire form from a bus event, wrapping
// untyped payloads in GenericEventData.
func NewEventWithData(e *Event) *EventWithData {
	data := e.GetTypedData()
	if data == nil {
		data = &GenericEventData{Type: e.Type, Data: e.Data}
	}
	return &EventWithData{
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Module:    e.Module,
		Data:      data,
	}
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case RunStarted, RunProgress, RunCompleted, RunFailed:
			eventData = &RunStatusData{}
		case PanelUpdated:
			eventData = &PanelUpdatedData{}
		case CorrelationUpdated:
			eventData = &CorrelationUpdatedData{}
		case JobStarted, JobCompleted, JobFailed:
			eventData = &JobRunData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if _, ok := eventData.(*GenericEventData); !ok {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
		}
		e.Data = eventData
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}

// toMap converts a typed payload to its generic map view via JSON.
// Returns nil when the payload cannot round-trip, which only happens
// for payloads with unmarshalable fields.
func toMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
