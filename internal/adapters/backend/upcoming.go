package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"parishweb/internal/domain/upcoming"
)

// UpcomingEvents loads the dashboard's upcoming events, soonest first.
// One GET is issued unless the breaker is open.
// PRE: none
// POST: returns the sorted events or an error; no retries are attempted
func (c *Client) UpcomingEvents(ctx context.Context) ([]upcoming.Event, error) {
	u := c.endpoint(c.upcoming...)

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := c.newRequest(ctx, http.MethodGet, u)
		if err != nil {
			return nil, err
		}
		return c.do(req)
	})
	c.observe("upcoming-events", start, err)
	if err != nil {
		return nil, fmt.Errorf("load upcoming events: %w", err)
	}
	var events []upcoming.Event
	if err := json.Unmarshal(out.([]byte), &events); err != nil {
		return nil, fmt.Errorf("decode upcoming events: %w", err)
	}
	upcoming.Sort(events)
	return events, nil
}
