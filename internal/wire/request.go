// Package wire reads and writes the minimal HTTP/1.1 subset the raw
// transport speaks: one request per connection, read in a single bounded
// read, answered with a fixed status line and a body.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rocha19/userserver/internal/domain"
)

// HeaderSeparator ends the header block and starts the body.
const HeaderSeparator = "\r\n\r\n"

// Request is the decoded view of one raw request buffer.
type Request struct {
	Method string
	Path   string
	// ID is the third "/"-separated segment of the raw text, see ExtractID.
	ID   string
	Body string
	// Raw is the whole request as text. Routing matches against it.
	Raw string
}

// Parse decodes buf as text, replacing invalid UTF-8 with U+FFFD, and
// extracts the request line, id and body. It never fails; malformed input
// surfaces later as an empty id or an undecodable body.
func Parse(buf []byte) Request {
	raw := string(buf)
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "\uFFFD")
	}

	req := Request{
		ID:   ExtractID(raw),
		Body: BodySegment(raw),
		Raw:  raw,
	}

	line, _, _ := strings.Cut(raw, "\r\n")
	fields := strings.Fields(line)
	if len(fields) > 0 {
		req.Method = fields[0]
	}
	if len(fields) > 1 {
		req.Path = fields[1]
	}

	return req
}

// ExtractID returns the first whitespace-delimited token of the third
// "/"-separated segment of text, or "" if there is none. For
// "GET /user/42 HTTP/1.1" that is "42".
func ExtractID(text string) string {
	parts := strings.SplitN(text, "/", 4)
	if len(parts) < 3 {
		return ""
	}

	fields := strings.Fields(parts[2])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// BodySegment returns whatever follows the last header separator. Without a
// separator that is the whole text.
func BodySegment(text string) string {
	if i := strings.LastIndex(text, HeaderSeparator); i >= 0 {
		return text[i+len(HeaderSeparator):]
	}
	return text
}

// ExtractBody decodes the body of a raw request into a User.
func ExtractBody(text string) (domain.User, error) {
	return DecodeUser(BodySegment(text))
}

type userPayload struct {
	ID    *int32  `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// DecodeUser decodes a JSON user. name and email must be present strings;
// id may be absent or null.
func DecodeUser(body string) (domain.User, error) {
	var payload userPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return domain.User{}, fmt.Errorf("failed to decode user: %w", err)
	}
	if payload.Name == nil {
		return domain.User{}, fmt.Errorf("%w: missing field name", domain.ErrInvalidUser)
	}
	if payload.Email == nil {
		return domain.User{}, fmt.Errorf("%w: missing field email", domain.ErrInvalidUser)
	}

	return domain.User{
		ID:    payload.ID,
		Name:  *payload.Name,
		Email: *payload.Email,
	}, nil
}

// ParseID parses a path id as a 32-bit signed integer.
func ParseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return int32(id), nil
}
