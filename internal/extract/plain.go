package extract

import (
	"bytes"
	"strings"
)

// extractPlain decodes a text or Markdown brief. A UTF-8 byte order mark is
// dropped, line endings are normalised and invalid sequences become U+FFFD.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	text := strings.ToValidUTF8(string(content), "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
