// Package stream decodes chat responses into typed events.
//
// The server replies either with a text event stream (one JSON payload per
// "data: " line, ended by a "[DONE]" sentinel) or, when streaming is
// refused, with a single JSON document. The decoder hides the difference:
// both modes yield the same lazy event sequence terminating in a done or
// error event.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// eventStreamType selects framed decoding; anything else is treated as
	// a single JSON document.
	eventStreamType = "text/event-stream"
)

// maxLineSize bounds a single frame. Content deltas are small; this only
// guards against a misbehaving server.
const maxLineSize = 1 << 20

// DecodeError reports a payload that parsed neither as framed events nor
// as a fallback JSON document. It is terminal.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// fallbackResponse is the non-streamed document shape.
type fallbackResponse struct {
	ConversationID    string `json:"conversation_id"`
	ConversationTitle string `json:"conversation_title,omitempty"`
	Message           struct {
		ID       string         `json:"id"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"message"`
	Usage map[string]any `json:"usage,omitempty"`
}

// Decoder turns a raw chat response body into an ordered event sequence.
// It is single-use and not safe for concurrent calls.
type Decoder struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	raw     bytes.Buffer
	logger  *slog.Logger

	framed   bool
	queue    []Event
	sawEvent bool
	terminal bool
}

// NewDecoder creates a decoder for a response body. The content type
// selects framed or fallback parsing; a framed response that produces no
// events by end-of-input is re-parsed as a fallback document, covering
// servers that ignore the stream flag.
func NewDecoder(body io.ReadCloser, contentType string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}

	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	d := &Decoder{
		body:   body,
		logger: logger,
		framed: mediaType == eventStreamType,
	}

	// Tee everything read into the raw buffer so the zero-events fallback
	// can re-parse the full payload.
	scanner := bufio.NewScanner(io.TeeReader(body, &d.raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	d.scanner = scanner

	return d
}

// Next returns the next event. After a terminal event has been returned,
// Next returns io.EOF. Mid-stream read failures are returned as-is;
// payloads that parse in neither mode return a *DecodeError.
func (d *Decoder) Next() (Event, error) {
	if len(d.queue) > 0 {
		ev := d.queue[0]
		d.queue = d.queue[1:]
		if ev.Terminal() {
			d.terminal = true
		}
		return ev, nil
	}
	if d.terminal {
		return Event{}, io.EOF
	}

	if !d.framed {
		if err := d.parseFallback(); err != nil {
			return Event{}, err
		}
		return d.Next()
	}

	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			// Blank separators and SSE comments.
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)

		if payload == doneSentinel {
			d.terminal = true
			return Event{Type: EventDone}, nil
		}

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			d.logger.Warn("skipping malformed frame", "error", err, "frame", payload)
			continue
		}
		if !validType(ev.Type) {
			d.logger.Warn("skipping frame with unknown type", "type", string(ev.Type))
			continue
		}

		d.sawEvent = true
		if ev.Terminal() {
			d.terminal = true
		}
		return ev, nil
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read stream: %w", err)
	}

	// End of input. A framed response that never produced an event was
	// most likely a plain JSON document despite its content type.
	if !d.sawEvent {
		if err := d.parseFallback(); err != nil {
			return Event{}, err
		}
		return d.Next()
	}

	// Events arrived but the terminal frame was lost; close out the
	// sequence so callers still finalize.
	d.terminal = true
	return Event{Type: EventDone}, nil
}

// Close releases the underlying response body.
func (d *Decoder) Close() error {
	return d.body.Close()
}

// parseFallback reads the remaining body, parses the accumulated payload as
// a single document and queues the synthesized event sequence.
func (d *Decoder) parseFallback() error {
	// Drain whatever the scanner has not pulled through the tee yet.
	if _, err := io.Copy(io.Discard, io.TeeReader(d.body, &d.raw)); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// The scanner may also hold consumed-but-unreturned bytes; raw has the
	// full picture because every read passed through the tee.
	data := bytes.TrimSpace(d.raw.Bytes())

	var doc fallbackResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		return &DecodeError{Err: err}
	}
	if doc.Message.Content == "" && doc.ConversationID == "" {
		return &DecodeError{Err: fmt.Errorf("document carries neither content nor conversation id")}
	}

	d.queue = d.queue[:0]
	if doc.Message.Content != "" {
		d.queue = append(d.queue, Event{Type: EventContent, Content: doc.Message.Content})
	}
	meta := doc.Message.Metadata
	if meta == nil {
		meta = doc.Usage
	}
	if len(meta) > 0 {
		d.queue = append(d.queue, Event{Type: EventMetadata, Metadata: meta})
	}
	d.queue = append(d.queue, Event{
		Type:           EventDone,
		ConversationID: doc.ConversationID,
		MessageID:      doc.Message.ID,
	})
	return nil
}
