// Package docfetch downloads remote meeting and task documents and reduces
// them to text suitable for a prompt.
package docfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Fixed results for failed downloads. Callers embed them into prompts as-is.
const (
	MsgDownloadFailed = "Failed to download meeting document"
	MsgFetchFailed    = "Meeting document fetch failed"
)

const (
	maxBodyBytes  = 32 << 20
	sniffRunes    = 100
	minPrintable  = 50
	maxSnippetLen = 2000
)

// Fetcher downloads documents over HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Fetcher whose requests time out after timeout.
func New(timeout time.Duration, logger *slog.Logger) *Fetcher {
	return NewWithClient(&http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, logger)
}

// NewWithClient creates a Fetcher around an existing HTTP client.
func NewWithClient(client *http.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads url and classifies the body. It never fails: download
// problems are reported as fixed placeholder strings.
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Warn("invalid document url", "url", url, "error", err)
		return MsgFetchFailed
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("document fetch failed", "url", url, "error", err)
		return MsgFetchFailed
	}
	defer resp.Body.Close()

	f.logger.Info("document downloaded", "url", url, "status", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return MsgDownloadFailed
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.logger.Warn("document read failed", "url", url, "error", err)
		return MsgFetchFailed
	}

	text, err := Classify(strings.ToLower(resp.Header.Get("Content-Type")), extension(url), body)
	if err != nil {
		f.logger.Warn("document decode failed", "url", url, "error", err)
		return MsgFetchFailed
	}
	return text
}

// Classify turns a downloaded body into prompt text using its lower-cased
// content type and file extension.
func Classify(contentType, ext string, body []byte) (string, error) {
	switch {
	case strings.Contains(contentType, "text") || ext == "txt" || ext == "md":
		return string(body), nil
	case strings.Contains(contentType, "pdf") || ext == "pdf":
		return fmt.Sprintf("PDF document (size: %d bytes) – cannot extract text directly", len(body)), nil
	case strings.Contains(contentType, "word") || strings.Contains(contentType, "docx") || ext == "doc" || ext == "docx":
		return fmt.Sprintf("Word document (size: %d bytes) – please review manually", len(body)), nil
	case strings.Contains(contentType, "json"):
		text, err := reindentJSON(body)
		if err != nil {
			return "", fmt.Errorf("decode json document: %w", err)
		}
		return text, nil
	}

	text := string(body)
	if !looksLikeText(text) {
		return fmt.Sprintf("Binary file (%s) – size: %d bytes", contentType, len(body)), nil
	}
	if utf8.RuneCountInString(text) > maxSnippetLen {
		return string([]rune(text)[:maxSnippetLen]) + "...", nil
	}
	return text, nil
}

// reindentJSON re-serializes a JSON document with two-space indentation.
// Object keys keep their order and string escapes are decoded, so non-ASCII
// text reaches the prompt as written.
func reindentJSON(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := writeJSONValue(dec, &buf, 0); err != nil {
		return "", err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", errors.New("unexpected data after top-level value")
	}
	return buf.String(), nil
}

func writeJSONValue(dec *json.Decoder, buf *bytes.Buffer, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		closing := byte('}')
		if v == '[' {
			closing = ']'
		}
		buf.WriteByte(byte(v))
		n := 0
		for dec.More() {
			if n > 0 {
				buf.WriteByte(',')
			}
			writeIndent(buf, depth+1)
			if v == '{' {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				writeJSONString(buf, key.(string))
				buf.WriteString(": ")
			}
			if err := writeJSONValue(dec, buf, depth+1); err != nil {
				return err
			}
			n++
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		if n > 0 {
			writeIndent(buf, depth)
		}
		buf.WriteByte(closing)
	case string:
		writeJSONString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case nil:
		buf.WriteString("null")
	}
	return nil
}

func writeIndent(buf *bytes.Buffer, depth int) {
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat("  ", depth))
}

func writeJSONString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}

// looksLikeText reports whether more than half of the first hundred
// characters are printable. Invalid UTF-8 bytes count as unprintable.
func looksLikeText(s string) bool {
	printable := 0
	for i, n := 0, 0; i < len(s) && n < sniffRunes; n++ {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.IsPrint(r) {
			printable++
		}
	}
	return printable > minPrintable
}

// extension returns the lower-cased text after the last dot in url, or "".
func extension(url string) string {
	idx := strings.LastIndex(url, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(url[idx+1:])
}
