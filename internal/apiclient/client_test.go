package apiclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/internal/core"
	"petcontract/internal/httpclient"
)

func TestSend_JSONRoundTrip(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/pet", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Trace"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gotBody)
	}))
	defer srv.Close()

	client := New(srv.URL+"/v2/", WithHeader("X-Trace", "yes"))
	res := client.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/pet",
		Body:   map[string]any{"id": 7, "name": "Doggie"},
	})

	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "OK", res.StatusText)
	assert.True(t, res.Success())
	assert.Equal(t, int64(7), res.Get("id").Int())
	assert.Equal(t, "Doggie", res.Get("name").String())
	assert.Contains(t, res.Header("content-type"), "application/json")
	assert.Equal(t, float64(7), gotBody["id"])
}

func TestSend_ErrorStatusIsAResultNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":1,"type":"error","message":"Pet not found"}`))
	}))
	defer srv.Close()

	res := New(srv.URL).Send(context.Background(), Request{Method: http.MethodGet, Path: "/pet/0"})

	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "Not Found", res.StatusText)
	assert.False(t, res.Success())
	assert.Equal(t, "Pet not found", res.Get("message").String())
}

func TestSend_TimeoutBecomesTransportResult(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	hc := httpclient.NewHTTPClient(&httpclient.ClientConfig{
		Timeout:               100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
		DialTimeout:           time.Second,
	})
	res := New(srv.URL, WithHTTPClient(hc)).Send(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})

	require.Error(t, res.Err)
	assert.Equal(t, 0, res.Status)
	assert.Equal(t, core.ErrorTypeTransport, core.TypeOf(res.Err))
	assert.Less(t, res.Elapsed, 2*time.Second)
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := New(addr).Send(context.Background(), Request{Method: http.MethodGet, Path: "/pet/1"})

	require.Error(t, res.Err)
	assert.Equal(t, core.ErrorTypeTransport, core.TypeOf(res.Err))
}

func TestSend_MultipartUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "pet.png", header.Filename)
		assert.Equal(t, []byte("PNGDATA"), data)
		assert.Equal(t, "front", r.FormValue("additionalMetadata"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"uploaded"}`))
	}))
	defer srv.Close()

	res := New(srv.URL).Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/pet/1/uploadImage",
		Upload: &Upload{
			FileName: "pet.png",
			Content:  []byte("PNGDATA"),
			Fields:   map[string]string{"additionalMetadata": "front"},
		},
	})

	require.NoError(t, res.Err)
	assert.Equal(t, int64(200), res.Get("code").Int())
}

func TestSend_QueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lion", r.URL.Query().Get("username"))
		assert.Equal(t, "1qaz@WSX", r.URL.Query().Get("password"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := New(srv.URL).Send(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/user/login",
		Query:  map[string][]string{"username": {"lion"}, "password": {"1qaz@WSX"}},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.Status)
}

func compress(t *testing.T, newWriter func(io.Writer) io.WriteCloser, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := newWriter(&buf)
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSend_DecodesContentEncoding(t *testing.T) {
	const payload = `{"status":"available"}`

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"gzip", "gzip", compress(t, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }, payload)},
		{"deflate", "deflate", compress(t, func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) }, payload)},
		{"raw deflate", "deflate", compress(t, func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		}, payload)},
		{"brotli", "br", compress(t, func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) }, payload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), tt.encoding)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Encoding", tt.encoding)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			res := New(srv.URL).Send(context.Background(), Request{Method: http.MethodGet, Path: "/pet/1"})

			require.NoError(t, res.Err)
			assert.True(t, res.Decoded)
			assert.True(t, res.IsJSON())
			assert.Equal(t, "available", res.Get("status").String())
		})
	}
}

func TestSend_RawBodyIsSentVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, `[{"id":1}]`, string(data))
	}))
	defer srv.Close()

	res := New(srv.URL).Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/user/createWithList",
		Body:   json.RawMessage(`[{"id":1}]`),
	})
	require.NoError(t, res.Err)
}
