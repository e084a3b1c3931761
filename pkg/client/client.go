// Package client builds and sends the canonical DICOMweb requests: QIDO-RS
// searches, WADO-RS instance retrieval and STOW-RS stores.
package client

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MediaTypeDICOMJSON is the QIDO-RS response media type
	MediaTypeDICOMJSON = "application/dicom+json"

	// AcceptMultipartDICOM is the Accept value for WADO-RS instance retrieval
	AcceptMultipartDICOM = `multipart/related; type="application/dicom"`

	defaultTimeout = 30 * time.Second
)

// Client holds the base URL, the per-service prefixes and the transport
// shared by every query it builds. It is safe for concurrent use.
type Client struct {
	baseURL     string
	qidoPrefix  string
	wadoPrefix  string
	stowPrefix  string
	transport   Transport
	header      http.Header
	newBoundary func() string
}

// Option configures a Client
type Option func(*Client)

// WithQIDOPrefix sets the path prefix of search endpoints, e.g. "/qido-rs".
func WithQIDOPrefix(prefix string) Option {
	return func(c *Client) { c.qidoPrefix = normalizePrefix(prefix) }
}

// WithWADOPrefix sets the path prefix of retrieve endpoints.
func WithWADOPrefix(prefix string) Option {
	return func(c *Client) { c.wadoPrefix = normalizePrefix(prefix) }
}

// WithSTOWPrefix sets the path prefix of the store endpoint.
func WithSTOWPrefix(prefix string) Option {
	return func(c *Client) { c.stowPrefix = normalizePrefix(prefix) }
}

// WithTransport replaces the default net/http transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithBearerToken authenticates every request with an OAuth bearer token.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.header.Set("Authorization", "Bearer "+token) }
}

// WithBasicAuth authenticates every request with HTTP basic credentials.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		c.header.Set("Authorization", "Basic "+creds)
	}
}

// WithBoundaryFunc sets the generator used for STOW-RS multipart boundaries.
func WithBoundaryFunc(fn func() string) Option {
	return func(c *Client) { c.newBoundary = fn }
}

// New creates a client for the DICOMweb service rooted at baseURL. The URL
// must be absolute.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be absolute", baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("invalid base URL %q: query and fragment not allowed", baseURL)
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		transport:   NewHTTPTransport(defaultTimeout),
		header:      make(http.Header),
		newBoundary: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		return nil, fmt.Errorf("transport must not be nil")
	}
	if c.newBoundary == nil {
		c.newBoundary = uuid.NewString
	}

	return c, nil
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections held by the default transport.
func (c *Client) Close() error {
	if t, ok := c.transport.(*HTTPTransport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// SearchStudies builds a QIDO-RS study search.
func (c *Client) SearchStudies() *Query {
	return c.newQuery(http.MethodGet, c.qidoPrefix, MediaTypeDICOMJSON, "studies")
}

// SearchSeries builds a QIDO-RS series search within a study.
func (c *Client) SearchSeries(studyUID string) *Query {
	return c.newQuery(http.MethodGet, c.qidoPrefix, MediaTypeDICOMJSON,
		"studies", studyUID, "series")
}

// SearchInstances builds a QIDO-RS instance search within a series.
func (c *Client) SearchInstances(studyUID, seriesUID string) *Query {
	return c.newQuery(http.MethodGet, c.qidoPrefix, MediaTypeDICOMJSON,
		"studies", studyUID, "series", seriesUID, "instances")
}

// RetrieveInstance builds a WADO-RS retrieval of one instance.
func (c *Client) RetrieveInstance(studyUID, seriesUID, sopInstanceUID string) *Query {
	return c.newQuery(http.MethodGet, c.wadoPrefix, AcceptMultipartDICOM,
		"studies", studyUID, "series", seriesUID, "instances", sopInstanceUID)
}

// RetrieveInstanceMetadata builds a WADO-RS metadata request for one instance.
func (c *Client) RetrieveInstanceMetadata(studyUID, seriesUID, sopInstanceUID string) *Query {
	return c.newQuery(http.MethodGet, c.wadoPrefix, MediaTypeDICOMJSON,
		"studies", studyUID, "series", seriesUID, "instances", sopInstanceUID, "metadata")
}

// StoreInstances builds a STOW-RS store. A fresh boundary is generated
// immediately so that Boundary reports the value the body will be framed with.
func (c *Client) StoreInstances() *Query {
	q := c.newQuery(http.MethodPost, c.stowPrefix, MediaTypeDICOMJSON, "studies")
	q.boundary = c.newBoundary()
	return q
}

func (c *Client) newQuery(method, prefix, accept string, segments ...string) *Query {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}

	header := c.header.Clone()
	header.Set("Accept", accept)

	return &Query{
		client: c,
		method: method,
		path:   c.baseURL + prefix + "/" + strings.Join(escaped, "/"),
		values: make(map[string]string),
		header: header,
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
