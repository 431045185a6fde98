package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Record separator terminating every JSON hub message.
const recordSeparator = 0x1e

// Message types of the JSON hub protocol.
const (
	typeInvocation = 1
	typeCompletion = 3
	typePing       = 6
	typeClose      = 7
)

const hubPath = "/notificationHub"

var (
	handshakeRecord = []byte(`{"protocol":"json","version":1}`)
	pingRecord      = []byte(`{"type":6}`)
)

type invocation struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId,omitempty"`
	Target       string `json:"target"`
	Arguments    []any  `json:"arguments"`
}

// message is any record received from the hub.
type message struct {
	Type           int               `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

func frame(record []byte) []byte {
	return append(record, recordSeparator)
}

// splitRecords returns the non-empty records of one websocket frame.
func splitRecords(data []byte) [][]byte {
	var records [][]byte
	for _, r := range bytes.Split(data, []byte{recordSeparator}) {
		if len(bytes.TrimSpace(r)) > 0 {
			records = append(records, r)
		}
	}
	return records
}

// HubURL derives the notification hub address from the REST API root by
// replacing a trailing /api segment with /notificationHub.
func HubURL(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil {
		return "", fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid api base url %q", apiBase)
	}

	path := strings.TrimRight(u.Path, "/")
	path = strings.TrimSuffix(path, "/api")
	u.Path = path + hubPath
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}

// endpoint maps hubURL onto a websocket URL carrying credential as the
// access_token query parameter.
func endpoint(hubURL, credential string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("invalid hub url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub url scheme %q", u.Scheme)
	}

	if credential != "" {
		q := u.Query()
		q.Set("access_token", credential)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
