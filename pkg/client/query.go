package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"

	"github.com/otcheredev/dicomweb-bridge/pkg/dicomjson"
	"github.com/otcheredev/dicomweb-bridge/pkg/multipart"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
)

// Query is one DICOMweb request under construction. Builder methods return
// the receiver so calls chain. A Query is not safe for concurrent use.
type Query struct {
	client   *Client
	method   string
	path     string
	keys     []string
	values   map[string]string
	header   http.Header
	boundary string
}

// Param sets a query parameter. Setting a key again replaces its value but
// keeps its original position.
func (q *Query) Param(key, value string) *Query {
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
	return q
}

// PatientName matches on (0010,0010). DICOM wildcards * and ? are allowed.
func (q *Query) PatientName(name string) *Query {
	return q.Param("PatientName", name)
}

// PatientID matches on (0010,0020).
func (q *Query) PatientID(id string) *Query {
	return q.Param("PatientID", id)
}

// StudyDate matches on (0008,0020), a date or a date range.
func (q *Query) StudyDate(date string) *Query {
	return q.Param("StudyDate", date)
}

// Modality matches on (0008,0060).
func (q *Query) Modality(modality string) *Query {
	return q.Param("Modality", modality)
}

// Limit caps the number of results.
func (q *Query) Limit(n int) *Query {
	return q.Param("limit", strconv.Itoa(n))
}

// Offset skips the first n results.
func (q *Query) Offset(n int) *Query {
	return q.Param("offset", strconv.Itoa(n))
}

// Header sets a header on this request only.
func (q *Query) Header(key, value string) *Query {
	q.header.Set(key, value)
	return q
}

// WithBoundary overrides the multipart boundary of a store.
func (q *Query) WithBoundary(boundary string) *Query {
	q.boundary = boundary
	return q
}

// Boundary returns the multipart boundary the store body is framed with, or
// "" for queries that send no body.
func (q *Query) Boundary() string {
	return q.boundary
}

// URL renders the full request URL.
func (q *Query) URL() string {
	if len(q.keys) == 0 {
		return q.path
	}

	var sb strings.Builder
	sb.WriteString(q.path)
	for i, k := range q.keys {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(q.values[k]))
	}
	return sb.String()
}

// Request assembles the transport request carrying body.
func (q *Query) Request(body []byte) *Request {
	header := q.header.Clone()
	if q.boundary != "" {
		header.Set("Content-Type", multipart.ContentType(q.boundary))
	}
	return &Request{
		Method: q.method,
		URL:    q.URL(),
		Header: header,
		Body:   body,
	}
}

// Send executes the request. Transport failures and non-2xx answers are
// returned as *TransportError.
func (q *Query) Send(ctx context.Context, body []byte) (*Response, error) {
	req := q.Request(body)
	start := time.Now()

	resp, err := q.client.transport.Do(ctx, req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL).Msg("DICOMweb request failed")
		return nil, &TransportError{Err: err}
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(resp.Body)).
		Dur("duration", time.Since(start)).
		Msg("DICOMweb request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &TransportError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

// Datasets sends a search or metadata request and decodes the DICOM JSON
// answer. A 204 or an empty body yields no data sets.
func (q *Query) Datasets(ctx context.Context) ([]dicom.Dataset, error) {
	resp, err := q.Send(ctx, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, nil
	}
	return dicomjson.Unmarshal(resp.Body)
}

// JSON sends the request and unmarshals the answer into v.
func (q *Query) JSON(ctx context.Context, v interface{}) error {
	resp, err := q.Send(ctx, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Instances sends a retrieve request and parses every part of the
// multipart answer.
func (q *Query) Instances(ctx context.Context) ([]dicom.Dataset, error) {
	resp, err := q.Send(ctx, nil)
	if err != nil {
		return nil, err
	}

	boundary, err := multipart.BoundaryFromContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	parts, err := multipart.Decode(resp.Body, boundary)
	if err != nil {
		return nil, err
	}

	datasets := make([]dicom.Dataset, 0, len(parts))
	for i, part := range parts {
		ds, err := part10.Read(part)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// Instance retrieves a single instance. A 404 is not an error: it returns
// (nil, nil).
func (q *Query) Instance(ctx context.Context) (*dicom.Dataset, error) {
	datasets, err := q.Instances(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, nil
	}
	return &datasets[0], nil
}

// Store serializes each data set as a Part 10 stream and sends them in one
// STOW-RS request. The returned data set is the server's store response.
func (q *Query) Store(ctx context.Context, datasets ...dicom.Dataset) (dicom.Dataset, error) {
	parts := make([][]byte, 0, len(datasets))
	for i, ds := range datasets {
		b, err := part10.Bytes(ds)
		if err != nil {
			return dicom.Dataset{}, fmt.Errorf("data set %d: %w", i, err)
		}
		parts = append(parts, b)
	}
	return q.StoreRaw(ctx, parts...)
}

// StoreRaw sends already encoded Part 10 payloads in one STOW-RS request.
func (q *Query) StoreRaw(ctx context.Context, parts ...[]byte) (dicom.Dataset, error) {
	if q.boundary == "" {
		q.boundary = q.client.newBoundary()
	}
	body := multipart.Encode(parts, q.boundary)

	resp, err := q.Send(ctx, body)
	if err != nil {
		return dicom.Dataset{}, err
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return dicom.Dataset{}, nil
	}
	return dicomjson.DecodeObject(resp.Body)
}
