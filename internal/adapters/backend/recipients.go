package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"parishweb/internal/domain/recipient"
)

// recipientAttempts bounds how often a directory load is tried.
const recipientAttempts = 3

// Directory supplies the list of emailable parishioners.
type Directory interface {
	Recipients(ctx context.Context) ([]recipient.Recipient, error)
}

// Recipients loads every non-departed parishioner from the backend.
// Transient failures (transport errors, 5xx, open breaker) are retried with
// exponential backoff; 4xx answers and undecodable bodies are not.
// PRE: none
// POST: returns the directory in backend order or the last error
func (c *Client) Recipients(ctx context.Context) ([]recipient.Recipient, error) {
	u := c.endpoint("gmail", "recipients")

	var list []recipient.Recipient
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		out, err := c.breaker.Execute(func() (interface{}, error) {
			req, err := c.newRequest(ctx, http.MethodGet, u)
			if err != nil {
				return nil, err
			}
			return c.do(req)
		})
		c.observe("recipients", start, err)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code < 500 {
				return backoff.Permanent(err)
			}
			slog.Warn("recipients_fetch_retry", "attempt", attempt, "error", err)
			return err
		}
		var decoded []recipient.Recipient
		if err := json.Unmarshal(out.([]byte), &decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode recipients: %w", err))
		}
		list = decoded
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, recipientAttempts-1), ctx)); err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	slog.Info("recipients_loaded", "count", len(list))
	return list, nil
}

// CachedDirectory keeps the last loaded directory for a fixed time so that
// every autocomplete keystroke does not reach the backend.
type CachedDirectory struct {
	src   Directory
	cache *expirable.LRU[string, []recipient.Recipient]
}

const directoryKey = "recipients"

// NewCachedDirectory wraps src with a cache entry that expires after ttl.
// PRE: ttl > 0
func NewCachedDirectory(src Directory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		src:   src,
		cache: expirable.NewLRU[string, []recipient.Recipient](1, nil, ttl),
	}
}

// Recipients returns the cached directory, loading it on a miss.
// Failed loads are not cached.
func (d *CachedDirectory) Recipients(ctx context.Context) ([]recipient.Recipient, error) {
	if list, ok := d.cache.Get(directoryKey); ok {
		return list, nil
	}
	list, err := d.src.Recipients(ctx)
	if err != nil {
		return nil, err
	}
	d.cache.Add(directoryKey, list)
	return list, nil
}

// Invalidate drops the cached directory.
func (d *CachedDirectory) Invalidate() {
	d.cache.Purge()
}
