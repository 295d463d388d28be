package specbind

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// StatusLine maps a status code to its status token, e.g. "201 Created".
// Codes without a registered reason phrase fail with ErrInvalidStatus.
func StatusLine(code int) (string, error) {
	text := http.StatusText(code)
	if text == "" {
		return "", fmt.Errorf("%w: %d", ErrInvalidStatus, code)
	}
	return strconv.Itoa(code) + " " + text, nil
}

// ParseStatusLine maps a status token back to its code.
func ParseStatusLine(line string) (int, error) {
	codeStr, text, ok := strings.Cut(line, " ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, line)
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || http.StatusText(code) != text {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, line)
	}
	return code, nil
}
