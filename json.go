package specbind

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// Dumps is the central point where JSON serialization happens: two-space
// indentation, a trailing newline, and no HTML escaping.
func Dumps(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Loads decodes JSON data. Data that is not valid JSON is returned as a string.
func Loads(data []byte) any {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

// IsJSONMimetype reports whether mimetype is application/json or an
// application/*+json type such as application/problem+json.
func IsJSONMimetype(mimetype string) bool {
	mediaType, _, err := mime.ParseMediaType(mimetype)
	if err != nil {
		return false
	}
	maintype, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || maintype != "application" {
		return false
	}
	return subtype == "json" || strings.HasSuffix(subtype, "+json")
}
