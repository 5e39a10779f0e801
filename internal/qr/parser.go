package qr

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"docverify-service/internal/models"
	"docverify-service/internal/util"
)

var (
	ErrMissingPayload = errors.New("qr payload missing or empty")
	ErrMalformedJSON  = errors.New("qr payload is not valid JSON")
	ErrUnreadable     = errors.New("qr payload could not be decoded")
)

// payloadParams are the query parameter names a verification URL may carry
// the payload under, checked in order.
var payloadParams = []string{"data", "payload", "qr"}

// Parse turns raw scanner output into a verification payload. Scanners hand
// back whatever the QR encoded, which in the wild is one of: a verification
// URL with the payload in a query parameter, bare JSON, URL-escaped JSON, or
// base64-wrapped JSON. Each form is tried in that order.
func Parse(raw string) (*models.VerificationPayload, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrMissingPayload
	}

	if looksLikeURL(text) {
		candidate, err := extractFromURL(text)
		if err != nil {
			return nil, err
		}
		// The extracted parameter value re-enters the ladder below; it may
		// itself be escaped or base64-wrapped.
		text = candidate
	}

	if payload, err := decodeJSON(text); err == nil {
		return payload, nil
	} else if errors.Is(err, ErrMalformedJSON) && !maybeEncoded(text) {
		return nil, err
	}

	if unescaped, err := url.QueryUnescape(text); err == nil && unescaped != text {
		if payload, err := decodeJSON(unescaped); err == nil {
			return payload, nil
		}
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		decoded, err := enc.DecodeString(text)
		if err != nil {
			continue
		}
		if payload, err := decodeJSON(string(decoded)); err == nil {
			return payload, nil
		}
	}

	util.Debug("qr payload unreadable", zap.Int("length", len(text)))
	return nil, ErrUnreadable
}

func looksLikeURL(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

func extractFromURL(text string) (string, error) {
	parsed, err := url.Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: bad verification url", ErrUnreadable)
	}
	query := parsed.Query()
	for _, param := range payloadParams {
		if value := query.Get(param); value != "" {
			return value, nil
		}
	}
	return "", ErrMissingPayload
}

func decodeJSON(text string) (*models.VerificationPayload, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrMalformedJSON
	}

	var payload models.VerificationPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return &payload, nil
}

// maybeEncoded reports whether text could plausibly be an escaped or base64
// form worth trying before giving up on a JSON parse failure.
func maybeEncoded(text string) bool {
	return !strings.Contains(text, " ") || strings.Contains(text, "%")
}
