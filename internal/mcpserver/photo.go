package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/hikelog/internal/photos"
)

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func (s *Server) attachPhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hikeID, err := idArg(req, "hike_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// The stored extension follows the bytes, not the claimed type.
	ext, err := sniffImage(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	h, err := s.svc.AttachPhoto(ctx, hikeID, "photo"+ext, bytes.NewReader(data))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(h), nil
}

// decodeDataURI returns the payload of a base64 data URI.
func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("data URI has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URI must be base64 encoded")
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(payload, "=") && len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	if len(data) > photos.MaxBytes {
		return nil, fmt.Errorf("photo is %d bytes, limit is %d", len(data), photos.MaxBytes)
	}
	return data, nil
}

const maxRedirects = 5

// fetchHTTP downloads a photo, refusing hosts on the local network.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("url scheme %q is not http or https", u.Scheme)
	}
	if err := checkBlockedHost(u.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(next *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return checkBlockedHost(next.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch photo: %s", resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, photos.MaxBytes+1)); err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if buf.Len() > photos.MaxBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", photos.MaxBytes)
	}
	return buf.Bytes(), nil
}

// checkBlockedHost refuses loopback, private, link-local and unspecified
// addresses. Names that do not resolve are left to the HTTP client.
func checkBlockedHost(host string) error {
	if strings.EqualFold(host, "localhost") || host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		resolved, err := net.LookupIP(host)
		if err != nil {
			return nil
		}
		ips = resolved
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("blocked host: %s resolves to %s", host, ip)
		}
	}
	return nil
}

// sniffImage maps content to a supported image extension.
func sniffImage(data []byte) (string, error) {
	detected := http.DetectContentType(data)
	ext, ok := mimeToExt[strings.Split(detected, ";")[0]]
	if !ok {
		return "", fmt.Errorf("content is not a supported image (detected: %s)", detected)
	}
	return ext, nil
}
