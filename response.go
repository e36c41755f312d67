package expose

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
)

// Response is the mutable response of one HTTP call. It is filled while the
// call runs and written out once at the end, so error handlers can replace
// anything set before them.
type Response struct {
	Status int
	Header http.Header

	body   []byte
	stream io.Reader
	closer io.Closer
	length int64
}

func newResponse() *Response {
	return &Response{Status: http.StatusOK, Header: make(http.Header), length: -1}
}

// SetBody replaces the payload with b.
func (r *Response) SetBody(b []byte) {
	r.close()
	r.body, r.stream, r.length = b, nil, -1
}

// Body returns the buffered payload. It is nil for streamed responses.
func (r *Response) Body() []byte { return r.body }

// SetStream replaces the payload with s. length is -1 when unknown. s is
// closed after it is written if it implements io.Closer.
func (r *Response) SetStream(s io.Reader, length int64) {
	r.close()
	r.body, r.stream, r.length = nil, s, length
	if c, ok := s.(io.Closer); ok {
		r.closer = c
	}
}

// Stream returns the streamed payload, if any.
func (r *Response) Stream() io.Reader { return r.stream }

func (r *Response) setPayload(payload any) error {
	switch v := payload.(type) {
	case nil:
		r.SetBody(nil)
	case []byte:
		r.SetBody(v)
	case string:
		r.SetBody([]byte(v))
	case io.Reader:
		r.SetStream(v, streamSize(v))
	default:
		return fmt.Errorf("formatter returned unsupported payload %T", payload)
	}
	return nil
}

// streamSize reports the size of s when it can be derived without reading.
func streamSize(s io.Reader) int64 {
	switch v := s.(type) {
	case interface{ Stat() (fs.FileInfo, error) }:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	case interface{ Size() int64 }:
		return v.Size()
	case interface{ Len() int }:
		return int64(v.Len())
	}
	return -1
}

// parseRange parses a single "bytes=start-end" range. Open ends are
// reported as -1 and suffix ranges ("bytes=-n") as a negative start.
func parseRange(header string) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		return -n, -1, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	if last == "" {
		return start, -1, true
	}
	end, err = strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// applyRange narrows the stream to [start, end] and marks the response as
// partial content. Streams of unknown size are served whole.
func (r *Response) applyRange(start, end int64) error {
	size := r.length
	if r.stream == nil || size < 0 {
		return nil
	}
	if start < 0 {
		start = max(size+start, 0)
	}
	if end < 0 {
		end += size
	}
	end = min(end, size-1)

	if start >= size || start > end {
		r.close()
		r.stream, r.length = nil, -1
		r.Status = http.StatusRequestedRangeNotSatisfiable
		r.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		return nil
	}

	if seeker, ok := r.stream.(io.Seeker); ok {
		if _, err := seeker.Seek(start, io.SeekStart); err != nil {
			return fmt.Errorf("seek to %d: %w", start, err)
		}
	} else if _, err := io.CopyN(io.Discard, r.stream, start); err != nil {
		return fmt.Errorf("skip to %d: %w", start, err)
	}

	length := end - start + 1
	r.stream = io.LimitReader(r.stream, length)
	r.length = length
	r.Status = http.StatusPartialContent
	r.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	return nil
}

func (r *Response) close() {
	if r.closer != nil {
		//nolint:errcheck,gosec // best-effort close of a consumed source
		r.closer.Close()
		r.closer = nil
	}
}

// write sends the response to w.
func (r *Response) write(w http.ResponseWriter) error {
	defer r.close()

	h := w.Header()
	for k, v := range r.Header {
		if k == "Vary" {
			h[k] = append(h[k], v...)
			continue
		}
		h[k] = v
	}

	if r.stream == nil {
		w.WriteHeader(r.Status)
		_, err := w.Write(r.body)
		return err
	}

	if r.length >= 0 {
		h.Set("Content-Length", strconv.FormatInt(r.length, 10))
		h.Set("Accept-Ranges", "bytes")
	}
	w.WriteHeader(r.Status)
	_, err := io.Copy(w, r.stream)
	return err
}
