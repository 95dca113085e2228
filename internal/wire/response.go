package wire

import (
	"io"
)

type Status int

const (
	StatusOK                  Status = 200
	StatusCreated             Status = 201
	StatusNoContent           Status = 204
	StatusBadRequest          Status = 400
	StatusNotFound            Status = 404
	StatusInternalServerError Status = 500
)

var statusLines = map[Status]string{
	StatusOK:                  "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n",
	StatusCreated:             "HTTP/1.1 201 Created\r\nContent-Type: application/json\r\n\r\n",
	StatusNoContent:           "HTTP/1.1 204 No Content\r\n\r\n",
	StatusBadRequest:          "HTTP/1.1 400 Bad Request\r\n\r\n",
	StatusNotFound:            "HTTP/1.1 404 Not Found\r\n\r\n",
	StatusInternalServerError: "HTTP/1.1 500 Internal Server Error\r\n\r\n",
}

// Line returns the status line and headers, terminated by a blank line.
// Unknown statuses fall back to the 500 line.
func (s Status) Line() string {
	if line, ok := statusLines[s]; ok {
		return line
	}
	return statusLines[StatusInternalServerError]
}

// DeclaresJSON reports whether the status line carries a JSON content type.
// It does regardless of what the body actually is.
func (s Status) DeclaresJSON() bool {
	return s == StatusOK || s == StatusCreated
}

type Response struct {
	Status Status
	Body   string
}

func (r Response) Bytes() []byte {
	line := r.Status.Line()
	buf := make([]byte, 0, len(line)+len(r.Body))
	buf = append(buf, line...)
	return append(buf, r.Body...)
}

// WriteTo writes the status line and body in a single write. No
// Content-Length is sent; the peer reads until the connection closes.
func (r Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}
