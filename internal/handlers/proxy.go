package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

var errDisallowedAddress = errors.New("address not allowed")

// carrierGradeNAT is 100.64.0.0/10, which net.IP.IsPrivate does not cover.
var carrierGradeNAT = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// ProxyHandler relays remote images as data URLs so browser clients can
// embed photos from origins that do not send CORS headers.
type ProxyHandler struct {
	client   *http.Client
	maxBytes int64
}

// NewProxyHandler returns a relay that refuses to connect to loopback,
// private, link-local and other internal addresses.
func NewProxyHandler(timeout time.Duration, maxBytes int64) *ProxyHandler {
	return newProxyHandler(timeout, maxBytes, checkPublicIP)
}

func newProxyHandler(timeout time.Duration, maxBytes int64, allow func(net.IP) error) *ProxyHandler {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil {
				return fmt.Errorf("%w: %s", errDisallowedAddress, host)
			}
			return allow(ip)
		},
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &ProxyHandler{
		client:   &http.Client{Timeout: timeout, Transport: transport},
		maxBytes: maxBytes,
	}
}

// checkPublicIP rejects every address that does not route to the public
// internet.
func checkPublicIP(ip net.IP) error {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() || carrierGradeNAT.Contains(ip) {
		return fmt.Errorf("%w: %s", errDisallowedAddress, ip)
	}
	return nil
}

// ProxyImage fetches ?url= and answers {"dataUrl": "data:<type>;base64,..."}.
// Only image responses are relayed.
func (h *ProxyHandler) ProxyImage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, "url query parameter is required", http.StatusBadRequest)
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		writeError(w, "url must be an absolute http or https URL", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeError(w, "url must be an absolute http or https URL", http.StatusBadRequest)
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, errDisallowedAddress) {
			log.WithField("url", target.Redacted()).Warn("Image fetch to internal address refused")
			writeError(w, "url resolves to a disallowed address", http.StatusBadRequest)
			return
		}
		log.WithError(err).WithField("url", target.Redacted()).Warn("Image fetch failed")
		writeError(w, "Failed to fetch image", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeError(w, fmt.Sprintf("Upstream returned %d", resp.StatusCode), upstreamErrorStatus(resp.StatusCode))
		return
	}

	reader := io.Reader(resp.Body)
	if h.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, h.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, "Failed to read image", http.StatusBadGateway)
		return
	}
	if h.maxBytes > 0 && int64(len(body)) > h.maxBytes {
		writeError(w, "Image is too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		writeError(w, "Upstream content is not an image", http.StatusUnsupportedMediaType)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"dataUrl": "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(body),
	})
}

// upstreamErrorStatus passes 4xx and 5xx through and maps anything else that
// is not a 200 to 502.
func upstreamErrorStatus(status int) int {
	if status >= 400 && status <= 599 {
		return status
	}
	return http.StatusBadGateway
}
