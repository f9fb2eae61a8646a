package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxImageBytes 限制单张图片大小。
const maxImageBytes = 32 << 20

func download(ctx context.Context, c *http.Client, u string, referer string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("image client 为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	// JavBus 的图片通常要求 Referer 为详情页，且 Cookie 含 age=verified。
	if isJavbusURL(u) {
		if strings.TrimSpace(referer) != "" {
			req.Header.Set("Referer", referer)
		}
		req.Header.Set("Cookie", "age=verified")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxImageBytes {
		return nil, fmt.Errorf("图片超过 %d 字节", maxImageBytes)
	}
	return b, nil
}

func isJavbusURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	return host == "javbus.com" || strings.HasSuffix(host, ".javbus.com")
}
