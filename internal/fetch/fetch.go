// Package fetch downloads config package archives produced by the remote
// build workflow. It only deals with a ready download URL; triggering and
// polling the workflow is out of scope here.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Client downloads archives with retrying HTTP.
type Client struct {
	http *retryablehttp.Client

	// Token, when set, is sent as a bearer token (private workflow
	// artifacts need one).
	Token string
}

// New returns a client that retries transient failures a few times and
// logs retries through the given logger.
func New(log *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.Logger = &leveledLogrus{log}
	return &Client{http: rc}
}

// Download fetches rawURL into destDir and returns the local file path.
// The file name comes from the Content-Disposition header when present,
// otherwise from the URL path.
func (c *Client) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid download URL: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("download failed: unexpected status %s", resp.Status)
	}

	name := fileName(resp.Header.Get("Content-Disposition"), rawURL)
	if name == "" {
		return "", fmt.Errorf("cannot derive a file name from %s", rawURL)
	}

	dest := filepath.Join(destDir, name)
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("download failed: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

// fileName picks the local file name for a download.
func fileName(contentDisposition, rawURL string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := filepath.Base(params["filename"]); name != "." && name != "/" && name != "" {
				return name
			}
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if name := path.Base(u.Path); name != "." && name != "/" {
		return name
	}
	return ""
}

// leveledLogrus adapts a logrus logger to retryablehttp's LeveledLogger.
type leveledLogrus struct {
	log *logrus.Logger
}

func fields(keysAndValues ...interface{}) logrus.Fields {
	f := make(logrus.Fields)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f[key] = keysAndValues[i+1]
		}
	}
	return f
}

func (l *leveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues...)).Error(msg)
}

func (l *leveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues...)).Info(msg)
}

func (l *leveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues...)).Debug(msg)
}

func (l *leveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues...)).Warn(msg)
}
