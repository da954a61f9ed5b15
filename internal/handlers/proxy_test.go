package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowAnyIP(net.IP) error { return nil }

func TestProxyHandler_ProxyImage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/photo-params":
			w.Header().Set("Content-Type", "image/jpeg; charset=binary")
			w.Write([]byte("jpg"))
		case "/secret":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("internal-secret"))
		case "/sniffed":
			w.Header()["Content-Type"] = nil
			w.Write([]byte("<html><body>hi</body></html>"))
		case "/big":
			w.Header().Set("Content-Type", "image/png")
			w.Write(make([]byte, 64))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/not-modified":
			w.WriteHeader(http.StatusNotModified)
		case "/broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	handler := newProxyHandler(2*time.Second, 32, allowAnyIP)
	call := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/proxy-image?url="+url.QueryEscape(target), nil)
		w := httptest.NewRecorder()
		handler.ProxyImage(w, req)
		return w
	}

	t.Run("data url", func(t *testing.T) {
		w := call(upstream.URL + "/photo.png")
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", resp["dataUrl"])
	})

	t.Run("media type parameters dropped", func(t *testing.T) {
		w := call(upstream.URL + "/photo-params")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data:image/jpeg;base64,`)
	})

	t.Run("non image content refused", func(t *testing.T) {
		w := call(upstream.URL + "/secret")
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.NotContains(t, w.Body.String(), "aW50ZXJuYWwtc2VjcmV0")
	})

	t.Run("sniffed non image refused", func(t *testing.T) {
		w := call(upstream.URL + "/sniffed")
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("upstream client and server errors are passed through", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, call(upstream.URL+"/missing").Code)
		assert.Equal(t, http.StatusServiceUnavailable, call(upstream.URL+"/broken").Code)
	})

	t.Run("other upstream statuses become bad gateway", func(t *testing.T) {
		for _, path := range []string{"/empty", "/not-modified"} {
			w := call(upstream.URL + path)
			assert.Equal(t, http.StatusBadGateway, w.Code, path)
			assert.NotEmpty(t, w.Body.String(), path)
		}
	})

	t.Run("too large", func(t *testing.T) {
		w := call(upstream.URL + "/big")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("missing url", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/proxy-image", nil)
		w := httptest.NewRecorder()
		handler.ProxyImage(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non http scheme", func(t *testing.T) {
		w := call("file:///etc/passwd")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProxyHandler_RefusesInternalAddresses(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("internal upstream must not be reached")
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer upstream.Close()

	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	handler := NewProxyHandler(2*time.Second, 1024)
	for _, target := range []string{
		upstream.URL + "/photo.png",
		"http://localhost:" + u.Port() + "/photo.png",
	} {
		req := httptest.NewRequest("GET", "/api/proxy-image?url="+url.QueryEscape(target), nil)
		w := httptest.NewRecorder()
		handler.ProxyImage(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), "disallowed address", target)
	}
}

func TestCheckPublicIP(t *testing.T) {
	for _, tc := range []struct {
		ip      string
		allowed bool
	}{
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
		{"8.8.8.8", true},
		{"2606:4700:4700::1111", true},
	} {
		err := checkPublicIP(net.ParseIP(tc.ip))
		if tc.allowed {
			assert.NoError(t, err, tc.ip)
		} else {
			assert.ErrorIs(t, err, errDisallowedAddress, tc.ip)
		}
	}
}
