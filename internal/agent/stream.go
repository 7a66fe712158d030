package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// streamResult holds the text accumulated from a stream-json turn.
type streamResult struct {
	Text      string
	SessionID string
}

// parseStream reads stream-json lines from stdout and accumulates the
// assistant's text-delta output. Phases always run unattended, so there
// is no terminal display concern to thread through here.
func parseStream(ctx context.Context, stdout io.Reader) (*streamResult, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	var result streamResult
	var textBuf strings.Builder

	for scanner.Scan() {
		if ctx.Err() != nil {
			return &result, ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue // skip malformed lines
		}

		switch event.Type {
		case "stream_event":
			handleStreamEvent(&event, &textBuf)
		case "result":
			handleResultEvent(&event, &result)
		}
	}
	if err := scanner.Err(); err != nil {
		return &result, fmt.Errorf("agent: reading stream: %w", err)
	}

	result.Text = textBuf.String()
	return &result, nil
}

type streamEvent struct {
	Type      string          `json:"type"`
	Event     json.RawMessage `json:"event"`
	Result    json.RawMessage `json:"result"`
	SessionID string          `json:"session_id"`
}

type nestedEvent struct {
	Type  string      `json:"type"`
	Delta *deltaBlock `json:"delta"`
}

type deltaBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type resultPayload struct {
	SessionID string `json:"session_id"`
}

func handleStreamEvent(event *streamEvent, textBuf *strings.Builder) {
	if event.Event == nil {
		return
	}
	var nested nestedEvent
	if err := json.Unmarshal(event.Event, &nested); err != nil {
		return
	}
	if nested.Type == "content_block_delta" && nested.Delta != nil && nested.Delta.Type == "text_delta" {
		textBuf.WriteString(nested.Delta.Text)
	}
}

func handleResultEvent(event *streamEvent, result *streamResult) {
	if event.Result != nil {
		var payload resultPayload
		if err := json.Unmarshal(event.Result, &payload); err == nil && payload.SessionID != "" {
			result.SessionID = payload.SessionID
			return
		}
	}
	if event.SessionID != "" {
		result.SessionID = event.SessionID
	}
}
