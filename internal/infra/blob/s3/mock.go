package s3

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	mockBucket   = "rnd-artifacts"
	mockPageSize = 2
	metaHeader   = "X-Amz-Meta-"
)

// NewMockForTests returns a Store whose client talks to an in-process fake
// bucket. It serves HEAD, GET, PUT, DELETE and paged ListObjectsV2.
func NewMockForTests() *Store {
	return &Store{client: newMockClient(&mockBucketServer{objs: map[string]mockObject{}}), bucket: mockBucket}
}

func newMockClient(rt http.RoundTripper) *s3.Client {
	cfg := aws.Config{
		Region:      defaultRegion,
		Credentials: credentials.NewStaticCredentialsProvider("AKIDMOCK", "SECRETMOCK", ""),
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.Retryer = aws.NopRetryer{}
	})
}

type mockObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

type mockBucketServer struct {
	mu   sync.Mutex
	objs map[string]mockObject
}

func respond(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header, ContentLength: int64(len(body))}
}

func (m *mockBucketServer) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ""
	if parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2); len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := m.objs[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		h := objectHeader(obj)
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, nil, h), nil
		}
		return respond(http.StatusOK, bytes.Clone(obj.body), h), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			if body, err = decodeAWSChunked(body); err != nil {
				return respond(http.StatusBadRequest, nil, nil), nil
			}
		}
		md := map[string]string{}
		for name, vals := range req.Header {
			if strings.HasPrefix(name, metaHeader) && len(vals) > 0 {
				md[strings.ToLower(strings.TrimPrefix(name, metaHeader))] = vals[0]
			}
		}
		m.objs[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: md, modified: time.Now().UTC()}
		return respond(http.StatusOK, nil, http.Header{"Etag": {quotedMD5(body)}}), nil
	case http.MethodDelete:
		delete(m.objs, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func quotedMD5(b []byte) string {
	sum := md5.Sum(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func objectHeader(obj mockObject) http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Content-Type":   {obj.contentType},
		"Etag":           {quotedMD5(obj.body)},
		"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
	}
	for k, v := range obj.metadata {
		h.Set(metaHeader+k, v)
	}
	return h
}

// list serves mockPageSize keys per page; the continuation token is the
// last key of the previous page.
func (m *mockBucketServer) list(req *http.Request) *http.Response {
	q := req.URL.Query()
	prefix, after := q.Get("prefix"), q.Get("continuation-token")
	var keys []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	truncated := len(keys) > mockPageSize
	if truncated {
		keys = keys[:mockPageSize]
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	fmt.Fprintf(&b, "<IsTruncated>%t</IsTruncated><KeyCount>%d</KeyCount>", truncated, len(keys))
	if truncated {
		fmt.Fprintf(&b, "<NextContinuationToken>%s</NextContinuationToken>", keys[len(keys)-1])
	}
	for _, k := range keys {
		obj := m.objs[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>%s</LastModified></Contents>",
			k, len(obj.body), obj.modified.Format(time.RFC3339))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

// decodeAWSChunked strips aws-chunked framing: hex size lines, optional
// chunk extensions, and trailing checksum headers after the zero chunk.
func decodeAWSChunked(b []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(b))
	tp := textproto.NewReader(r)
	var out bytes.Buffer
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeHex), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", line, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, err
		}
		if _, err := tp.ReadLine(); err != nil {
			return nil, err
		}
	}
}
