package transport

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/relvacode/iso8601"
)

// Request topics for the data subscription service's request/response side.
const (
	TopicRequestQuoteTicks  = "QuoteTick[]"
	TopicRequestBars        = "Bar[]"
	TopicRequestInstruments = "Instrument[]"
)

// Publish topic prefixes for the data subscription service's publish side.
// A concrete topic appends the symbol or bar type, e.g. "Quote:AUD/USD.FXCM".
const (
	PublishPrefixQuote      = "Quote:"
	PublishPrefixBar        = "Bar:"
	PublishPrefixInstrument = "Instrument:"
)

// ContentType and Encoding values an Envelope may carry.
const (
	ContentTypeJSON = "application/json"

	EncodingUTF8 = "UTF8"
	EncodingBSON = "BSON"
)

// Envelope is the wire format for every message crossing the data
// subscription service's network boundary: requests, responses, and
// published ticks/bars/instruments alike carry one.
type Envelope struct {
	Payload       []byte
	ContentType   string
	Encoding      string
	CorrelationId string
	MessageId     string
	Timestamp     time.Time
}

// NewEnvelope builds an Envelope around payload, stamping a fresh message
// id and the current time. correlationId may be empty for a one-way
// publish; set it to the request's MessageId when framing a response.
func NewEnvelope(payload []byte, contentType, encoding, correlationId string) *Envelope {
	return &Envelope{
		Payload:       payload,
		ContentType:   contentType,
		Encoding:      encoding,
		CorrelationId: correlationId,
		MessageId:     uuid.NewString(),
		Timestamp:     time.Now().UTC(),
	}
}

// wireEnvelope is the JSON projection of an Envelope: payload bytes are
// base64-encoded by encoding/json's []byte handling, and the timestamp is
// carried as ISO-8601 rather than unix-seconds-as-string.
type wireEnvelope struct {
	Payload       []byte `json:"payload"`
	ContentType   string `json:"content_type"`
	Encoding      string `json:"encoding"`
	CorrelationId string `json:"correlation_id,omitempty"`
	MessageId     string `json:"message_id"`
	Timestamp     string `json:"timestamp"`
}

// Marshal encodes the envelope to its JSON wire form.
func (e *Envelope) Marshal() ([]byte, error) {
	w := wireEnvelope{
		Payload:       e.Payload,
		ContentType:   e.ContentType,
		Encoding:      e.Encoding,
		CorrelationId: e.CorrelationId,
		MessageId:     e.MessageId,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	return json.Marshal(w)
}

// UnmarshalEnvelope decodes an envelope from its JSON wire form.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	ts, err := iso8601.ParseString(w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse envelope timestamp %q: %w", w.Timestamp, err)
	}

	return &Envelope{
		Payload:       w.Payload,
		ContentType:   w.ContentType,
		Encoding:      w.Encoding,
		CorrelationId: w.CorrelationId,
		MessageId:     w.MessageId,
		Timestamp:     ts,
	}, nil
}
