// Package jsonutil is the JSON codec shared by the HTTP clients, the API
// server and the history store.
package jsonutil

import (
	"github.com/bytedance/sonic"
)

// API is the frozen sonic configuration. HTML escaping stays on because
// payloads end up in browsers and chat embeds.
var API = sonic.Config{
	EscapeHTML:       true,
	CompactMarshaler: true,
}.Froze()

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return API.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v any) error {
	return API.Unmarshal(data, v)
}

// MarshalString encodes v as a JSON string.
func MarshalString(v any) (string, error) {
	return API.MarshalToString(v)
}

// UnmarshalString decodes a JSON string into v.
func UnmarshalString(s string, v any) error {
	return API.UnmarshalFromString(s, v)
}
