package vault

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// forbiddenBucket answers every request with 403.
const forbiddenBucket = "forbidden"

// bucketServer is an in-memory S3-compatible endpoint with path-style
// addressing. It understands enough of the protocol for the S3 SDK and
// minio-go: object PUT, GET and HEAD plus bucket HEAD.
type bucketServer struct {
	*httptest.Server

	mu      sync.Mutex
	buckets map[string]map[string][]byte
	keys    []string
}

func newBucketServer(t *testing.T, buckets ...string) *bucketServer {
	t.Helper()
	s := &bucketServer{buckets: make(map[string]map[string][]byte)}
	for _, b := range buckets {
		s.buckets[b] = make(map[string][]byte)
	}
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// object returns the stored bytes of bucket/key.
func (s *bucketServer) object(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.buckets[bucket][key]
	return data, ok
}

// requestedKeys returns every object key requested so far.
func (s *bucketServer) requestedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *bucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket == forbiddenBucket {
		writeS3Error(w, r, http.StatusForbidden, "AccessDenied")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchBucket")
		return
	}
	if key == "" {
		if _, ok := r.URL.Query()["location"]; ok {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	s.keys = append(s.keys, key)
	switch r.Method {
	case http.MethodPut:
		data, err := readPayload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		objects[key] = data
		w.Header().Set("ETag", etagOf(data))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := objects[key]
		if !ok {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		h := w.Header()
		h.Set("Content-Length", strconv.Itoa(len(data)))
		h.Set("Content-Type", "application/octet-stream")
		h.Set("ETag", etagOf(data))
		h.Set("Last-Modified", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func etagOf(data []byte) string {
	return fmt.Sprintf(`"%x"`, md5.Sum(data))
}

// writeS3Error answers with an S3 error document. HEAD responses carry
// the status only, like the real service.
func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code string) {
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Resource>%s</Resource><RequestId>test</RequestId></Error>`,
		code, http.StatusText(status), r.URL.Path)
}

// readPayload returns the object bytes of a PUT, decoding aws-chunked
// bodies used by streaming signatures and trailing checksums.
func readPayload(r *http.Request) ([]byte, error) {
	chunked := strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") ||
		strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked")
	if !chunked {
		return io.ReadAll(r.Body)
	}

	br := bufio.NewReader(r.Body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		n, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk header %q: %w", line, err)
		}
		if n == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, n); err != nil {
			return nil, fmt.Errorf("reading chunk: %w", err)
		}
		if _, err := br.Discard(2); err != nil {
			return nil, fmt.Errorf("reading chunk trailer: %w", err)
		}
	}
}
