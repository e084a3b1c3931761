// Package multipart frames binary DICOM payloads inside multipart/related
// HTTP bodies, as used by WADO-RS retrieve and STOW-RS store.
package multipart

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"
)

const (
	// MediaType is the media type of every body produced by Encode
	MediaType = "multipart/related"

	// PartType is the media type of each framed payload
	PartType = "application/dicom"
)

// ContentType returns the Content-Type header value announcing boundary.
func ContentType(boundary string) string {
	return MediaType + `; type="` + PartType + `"; boundary=` + boundary
}

// BoundaryFromContentType extracts the boundary parameter of a
// multipart/related Content-Type header.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		if !strings.EqualFold(mediaType, MediaType) {
			return "", newProtocolError(MissingBoundary, "unexpected media type %q", mediaType)
		}
		if b := params["boundary"]; b != "" {
			return b, nil
		}
		return "", newProtocolError(MissingBoundary, "no boundary in %q", contentType)
	}

	// Servers commonly send type=application/dicom unquoted, which is not a
	// valid RFC 2045 token. Fall back to locating the parameter by hand.
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), MediaType) {
		return "", newProtocolError(MissingBoundary, "unexpected content type %q", contentType)
	}
	idx := strings.LastIndex(strings.ToLower(contentType), "boundary=")
	if idx < 0 {
		return "", newProtocolError(MissingBoundary, "no boundary in %q", contentType)
	}
	b := contentType[idx+len("boundary="):]
	if semi := strings.IndexByte(b, ';'); semi >= 0 {
		b = b[:semi]
	}
	b = strings.Trim(strings.TrimSpace(b), `"`)
	if b == "" {
		return "", newProtocolError(MissingBoundary, "empty boundary in %q", contentType)
	}
	return b, nil
}

// Encode frames parts into a multipart/related body delimited by boundary.
// Payload bytes are copied verbatim; callers must pick a boundary that does
// not occur inside any payload.
func Encode(parts [][]byte, boundary string) []byte {
	var buf bytes.Buffer
	buf.Grow(EncodedLen(parts, boundary))

	for i, part := range parts {
		if i > 0 {
			buf.WriteString("\r\n")
		}
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString("Content-Type: " + ContentType(boundary) + "\r\n")
		buf.WriteString("Content-Length: " + strconv.Itoa(len(part)) + "\r\n")
		buf.WriteString("\r\n")
		buf.Write(part)
	}
	buf.WriteString(terminator(boundary))

	return buf.Bytes()
}

// EncodedLen returns the exact length of Encode(parts, boundary).
func EncodedLen(parts [][]byte, boundary string) int {
	n := len(terminator(boundary))
	for i, part := range parts {
		if i > 0 {
			n += 2
		}
		n += len("--"+boundary+"\r\n") +
			len("Content-Type: "+ContentType(boundary)+"\r\n") +
			len("Content-Length: "+strconv.Itoa(len(part))+"\r\n") +
			2 + len(part)
	}
	return n
}

func terminator(boundary string) string {
	return "\r\n--" + boundary + "--"
}

type state int

const (
	stateNextPart state = iota
	stateInHeader
	stateInBinary
)

func (s state) String() string {
	switch s {
	case stateNextPart:
		return "next-part"
	case stateInHeader:
		return "in-header"
	case stateInBinary:
		return "in-binary"
	default:
		return "unknown"
	}
}

// Decode splits a multipart/related body into its binary parts.
func Decode(body []byte, boundary string) ([][]byte, error) {
	return DecodeReader(bytes.NewReader(body), boundary)
}

// DecodeReader splits a multipart/related stream into its binary parts.
//
// Part headers are scanned line by line. Payloads are read with exact
// length reads, so binary content containing line breaks is never split.
// A part without Content-Length is treated as the last part of the body and
// recovered by stripping the closing delimiter; bodies with several parts
// must declare a length for every part but the last.
func DecodeReader(r io.Reader, boundary string) ([][]byte, error) {
	if boundary == "" {
		return nil, newProtocolError(MissingBoundary, "empty boundary")
	}

	br := bufio.NewReader(r)
	delimiter := []byte(boundary)
	opening := []byte("--" + boundary)
	closing := []byte("--" + boundary + "--")

	var (
		parts       [][]byte
		st          = stateNextPart
		length      int64
		hasLength   bool
		sawBoundary bool
	)

	for {
		switch st {
		case stateNextPart:
			line, err := br.ReadBytes('\n')
			trimmed := bytes.TrimRight(line, " \t\r\n")
			if bytes.Equal(trimmed, closing) {
				return parts, nil
			}
			if len(trimmed) > 0 && bytes.HasSuffix(trimmed, delimiter) {
				sawBoundary = true
				length, hasLength = 0, false
				st = stateInHeader
				if err == io.EOF {
					return nil, newProtocolError(UnexpectedState, "body ended after boundary of part %d", len(parts)+1)
				}
				continue
			}
			if err == io.EOF {
				if !sawBoundary {
					return nil, newProtocolError(MissingBoundary, "boundary %q not found in body", boundary)
				}
				return parts, nil
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read multipart body: %w", err)
			}

		case stateInHeader:
			line, err := br.ReadBytes('\n')
			if err == io.EOF {
				return nil, newProtocolError(UnexpectedState, "body ended in %s of part %d", st, len(parts)+1)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read part header: %w", err)
			}

			header := bytes.TrimRight(line, "\r\n")
			if len(bytes.TrimSpace(header)) == 0 {
				st = stateInBinary
				continue
			}
			if bytes.Equal(bytes.TrimSpace(header), opening) {
				return nil, newProtocolError(UnexpectedState, "boundary inside headers of part %d", len(parts)+1)
			}

			name, value, ok := bytes.Cut(header, []byte(":"))
			if !ok {
				return nil, newProtocolError(MalformedHeader, "header line %q has no colon", header)
			}
			if strings.EqualFold(string(bytes.TrimSpace(name)), "Content-Length") {
				n, err := strconv.ParseInt(string(bytes.TrimSpace(value)), 10, 64)
				if err != nil || n < 0 {
					return nil, newProtocolError(MalformedHeader, "invalid Content-Length %q", bytes.TrimSpace(value))
				}
				length, hasLength = n, true
			}

		case stateInBinary:
			if hasLength {
				// Content-Length is untrusted: grow with the bytes actually read.
				var part bytes.Buffer
				n, err := io.CopyN(&part, br, length)
				if err == io.EOF || (err == nil && n < length) {
					return nil, newProtocolError(Truncated, "part %d declared %d bytes, body holds %d", len(parts)+1, length, n)
				}
				if err != nil {
					return nil, fmt.Errorf("failed to read part payload: %w", err)
				}
				parts = append(parts, part.Bytes())
				st = stateNextPart
				continue
			}

			rest, err := io.ReadAll(br)
			if err != nil {
				return nil, fmt.Errorf("failed to read part payload: %w", err)
			}
			part, ok := stripTerminator(rest, boundary)
			if !ok {
				return nil, newProtocolError(MissingTerminator, "part %d has no Content-Length and body does not end with the closing delimiter", len(parts)+1)
			}
			return append(parts, part), nil
		}
	}
}

// stripTerminator removes the closing delimiter from the tail of a body
// whose last part carried no length. One trailing CRLF is tolerated.
func stripTerminator(rest []byte, boundary string) ([]byte, bool) {
	term := []byte(terminator(boundary))
	if bytes.HasSuffix(rest, term) {
		return rest[:len(rest)-len(term)], true
	}
	if trimmed, ok := bytes.CutSuffix(rest, []byte("\r\n")); ok && bytes.HasSuffix(trimmed, term) {
		return trimmed[:len(trimmed)-len(term)], true
	}
	return nil, false
}
