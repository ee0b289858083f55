package llm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tidwall/sjson"
)

var (
	// ErrMissingConfig marks a provider whose credentials or endpoint are absent.
	ErrMissingConfig = errors.New("provider configuration missing")
	// ErrUnknownProvider is returned by Select for an unrecognised kind.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// ConfigError is a configuration problem detected before any network call.
// Message is what the client sees in the error frame.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string { return e.Message }

func (e *ConfigError) Unwrap() error { return ErrMissingConfig }

// UpstreamError is a non-success response from the provider, body verbatim.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Upstream error: %d - %s", e.StatusCode, e.Body)
}

// Event is one unit of the outward stream: either a raw upstream line,
// forwarded byte for byte, or a synthesized error frame. An error frame is
// always the last event of a stream.
type Event struct {
	Data []byte
	Err  error
}

// IsError reports whether the event is a synthesized error frame.
func (e Event) IsError() bool { return e.Err != nil }

// ErrorEvent renders err as `data: {"error": "..."}` followed by a blank line.
func ErrorEvent(err error) Event {
	return Event{Data: ErrorFrame(err.Error()), Err: err}
}

// ErrorFrame renders msg as a single event-stream frame.
func ErrorFrame(msg string) []byte {
	payload, err := sjson.SetBytes([]byte(`{}`), "error", msg)
	if err != nil {
		// sjson only fails on an invalid path
		payload = []byte(`{"error":"internal error"}`)
	}
	var buf bytes.Buffer
	buf.Grow(len(payload) + 8)
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

const (
	dataPrefix = "data: "
	doneToken  = "[DONE]"
)

// dataPayload strips the event-stream framing from line. It returns false for
// blank lines, comments, non-data fields, and the terminator token.
func dataPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || string(payload) == doneToken {
		return nil, false
	}
	return payload, true
}
