// Package sse builds server-sent-event frames. Adapters emit ready-to-write
// frames so the relay can forward them verbatim.
package sse

import (
	"encoding/json"
	"fmt"
)

// DoneFrame terminates a successfully completed stream. Exactly one is
// emitted per stream, and nothing follows it.
const DoneFrame = "data: [DONE]\n\n"

func Frame(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return "data: " + string(data) + "\n\n", nil
}

// ErrorFrame carries a mid-stream failure in-band, after the HTTP status is
// already committed. Clients must treat it as terminal, distinct from DONE.
func ErrorFrame(message string) string {
	frame, err := Frame(map[string]string{"error": message})
	if err != nil {
		return "data: {\"error\": \"stream failed\"}\n\n"
	}
	return frame
}
