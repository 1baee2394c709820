// Package client consumes the chat streaming wire format: one JSON
// object per line, either {"token": ...} or {"chat_id": ...}, with
// end-of-stream signalled by the transport closing.
package client

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"strings"
)

// Event is one decoded stream frame. Exactly one field is set.
type Event struct {
	Token  string `json:"token"`
	ChatID string `json:"chat_id"`
}

// Decoder reads NDJSON events from a response body. Malformed lines are
// skipped, not fatal; subsequent valid lines still decode.
type Decoder struct {
	scanner *bufio.Scanner
	skipped int
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	return &Decoder{scanner: s}
}

// Next returns the next event, or io.EOF when the stream is done.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			d.skipped++
			log.Printf("[client] skipping malformed stream line: %v", err)
			continue
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Skipped reports how many malformed lines were dropped.
func (d *Decoder) Skipped() int { return d.skipped }
