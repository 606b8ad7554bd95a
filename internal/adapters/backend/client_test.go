package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parishweb/internal/adapters/perf"
	"parishweb/internal/domain/conflict"
	"parishweb/internal/domain/recipient"
)

const oneConflict = `{"hasConflicts":true,"conflictCount":1,
	"databaseConflicts":[{"parishionerName":"J. Doe","eventTitle":"Baptism","eventDate":"2025-12-25","eventTime":"09:00","source":"database"}],
	"googleCalendarConflicts":[]}`

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestCheckConflicts_RequestShape(t *testing.T) {
	var (
		gotMethod, gotPath, gotQuery string
		gotAccept, gotAJAX           string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		gotAJAX = r.Header.Get("X-Requested-With")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(oneConflict))
	}))

	snap := conflict.Snapshot{EventDate: "2025-12-25", StartTime: "09:00", EndTime: "10:00", ParticipantIDs: []string{"12", "45"}}
	report, err := c.CheckConflicts(context.Background(), "42", snap)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/parishioners/view/42/check-conflicts", gotPath)
	assert.Equal(t, "eventDate=2025-12-25&startTime=09%3A00&endTime=10%3A00&additionalParticipants=12%2C45", gotQuery)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "XMLHttpRequest", gotAJAX)

	assert.True(t, report.HasConflicts)
	assert.Equal(t, 1, report.ConflictCount)
	require.Len(t, report.DatabaseConflicts, 1)
	assert.Equal(t, "J. Doe", report.DatabaseConflicts[0].ParishionerName)
	assert.Empty(t, report.GoogleCalendarConflicts)
}

func TestCheckConflicts_CustomResourceAndCookies(t *testing.T) {
	var gotPath, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if ck, err := r.Cookie("JSESSIONID"); err == nil {
			gotCookie = ck.Value
		}
		w.Write([]byte(`{"hasConflicts":false,"conflictCount":0,"databaseConflicts":[],"googleCalendarConflicts":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/prm/", Resource: "/households/"}, nil)
	require.NoError(t, err)

	ctx := WithCookies(context.Background(), []*http.Cookie{{Name: "JSESSIONID", Value: "abc"}})
	report, err := c.CheckConflicts(ctx, "a b", conflict.Snapshot{EventDate: "2025-12-25"})
	require.NoError(t, err)
	assert.False(t, report.HasConflicts)
	assert.Equal(t, "/prm/households/view/a b/check-conflicts", gotPath)
	assert.Equal(t, "abc", gotCookie)
}

func TestCheckConflicts_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `oops`, ErrUnexpectedStatus},
		{"forbidden", http.StatusForbidden, ``, ErrUnexpectedStatus},
		{"malformed json", http.StatusOK, `{"hasConflicts":`, ErrInvalidReport},
		{"error body", http.StatusOK, `{"error":"Text '25/12/2025' could not be parsed"}`, ErrInvalidReport},
		{"wrong types", http.StatusOK, `{"hasConflicts":"yes","conflictCount":1,"databaseConflicts":[],"googleCalendarConflicts":[]}`, ErrInvalidReport},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			_, err := c.CheckConflicts(context.Background(), "1", conflict.Snapshot{EventDate: "2025-12-25"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCheckConflicts_EmptySubject(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	_, err := c.CheckConflicts(context.Background(), " ", conflict.Snapshot{EventDate: "2025-12-25"})
	assert.ErrorIs(t, err, ErrEmptySubject)
	assert.Zero(t, calls.Load())
}

func TestCheckConflicts_NoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := c.CheckConflicts(context.Background(), "1", conflict.Snapshot{EventDate: "2025-12-25"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckConflicts_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, BreakerFailures: 2, BreakerCooldown: time.Hour}, srv.Client())
	require.NoError(t, err)

	snap := conflict.Snapshot{EventDate: "2025-12-25"}
	for i := 0; i < 4; i++ {
		_, err := c.CheckConflicts(context.Background(), "1", snap)
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load(), "open breaker should fail fast")
}

func TestCheckConflicts_AuthFailuresKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("JSESSIONID"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(oneConflict))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, BreakerFailures: 2, BreakerCooldown: time.Hour}, srv.Client())
	require.NoError(t, err)

	snap := conflict.Snapshot{EventDate: "2025-12-25"}
	for i := 0; i < 5; i++ {
		_, err := c.CheckConflicts(context.Background(), "42", snap)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.Code)
	}

	ctx := WithCookies(context.Background(), []*http.Cookie{{Name: "JSESSIONID", Value: "abc"}})
	report, err := c.CheckConflicts(ctx, "42", snap)
	require.NoError(t, err)
	assert.True(t, report.HasConflicts)
}

func TestHealthy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"cancelled", fmt.Errorf("post: %w", context.Canceled), true},
		{"unauthorized", &StatusError{Code: http.StatusUnauthorized}, true},
		{"not found", &StatusError{Code: http.StatusNotFound}, true},
		{"server error", &StatusError{Code: http.StatusInternalServerError}, false},
		{"bad gateway", &StatusError{Code: http.StatusBadGateway}, false},
		{"transport", errors.New("connection refused"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"invalid report", ErrInvalidReport, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, healthy(tt.err))
		})
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.org"}, nil)
	assert.Error(t, err)
	_, err = NewClient(Config{BaseURL: "::"}, nil)
	assert.Error(t, err)
}

func TestRecipients_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/recipients", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"parishionerId":1,"fullName":"John Doe","email":"john@example.org","householdName":"Doe","status":"MEMBER"},
			{"parishionerId":2,"fullName":"Mary Smith","email":null,"householdName":null,"status":"CATECHUMEN"}]`))
	}))

	list, err := c.Recipients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, list, 2)
	assert.Equal(t, recipient.Recipient{ID: 1, FullName: "John Doe", Email: "john@example.org", HouseholdName: "Doe", Status: "MEMBER"}, list[0])
	assert.False(t, list[1].HasEmail())
}

func TestRecipients_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := c.Recipients(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, int32(1), calls.Load())
}

type countingDirectory struct {
	calls atomic.Int32
	err   error
}

func (d *countingDirectory) Recipients(context.Context) ([]recipient.Recipient, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return []recipient.Recipient{{ID: 1, FullName: "John Doe"}}, nil
}

func TestCachedDirectory(t *testing.T) {
	src := &countingDirectory{}
	d := NewCachedDirectory(src, time.Minute)

	for i := 0; i < 3; i++ {
		list, err := d.Recipients(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	d.Invalidate()
	_, err := d.Recipients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedDirectory_DoesNotCacheErrors(t *testing.T) {
	src := &countingDirectory{err: errors.New("down")}
	d := NewCachedDirectory(src, time.Minute)
	_, err := d.Recipients(context.Background())
	require.Error(t, err)
	_, err = d.Recipients(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestClient_RecordsTimings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gmail/recipients" {
			w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	collector := perf.NewCollector(16)
	c, err := NewClient(Config{BaseURL: srv.URL, Recorder: collector}, srv.Client())
	require.NoError(t, err)

	_, err = c.CheckConflicts(context.Background(), "1", conflict.Snapshot{EventDate: "2025-12-25"})
	require.Error(t, err)
	_, err = c.Recipients(context.Background())
	require.NoError(t, err)

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	require.Len(t, snap.Slowest, 2)
	byName := map[string]perf.Stat{}
	for _, s := range snap.Slowest {
		byName[s.Name] = s
	}
	assert.Equal(t, 1, byName["check-conflicts"].Failures)
	assert.Equal(t, 0, byName["recipients"].Failures)
	assert.Equal(t, "backend", byName["recipients"].Kind)
}

func TestUpcomingEvents_SortedAndPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[
			{"title":"Vespers","date":"2025-12-26","time":"18:00:00","type":"EVENT","eventId":9},
			{"title":"Name Day: Spyridon","parishionerName":"Spyridon Pappas","date":"2025-12-25","time":null,"type":"NAME_DAY","parishionerId":4},
			{"title":"Baptism: Anna","date":"2025-12-25","time":"11:00:00","type":"SACRAMENT"}]`))
	}))

	events, err := c.UpcomingEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dashboard/upcoming-events", gotPath)
	require.Len(t, events, 3)
	assert.Equal(t, "Name Day: Spyridon", events[0].Title)
	assert.True(t, events[0].IsAllDay())
	assert.Equal(t, int64(4), events[0].ParishionerID)
	assert.Equal(t, "Baptism: Anna", events[1].Title)
	assert.Equal(t, "Vespers", events[2].Title)
}

func TestUpcomingEvents_CustomPathAndFailure(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/prm", UpcomingPath: "/api/upcoming/"}, srv.Client())
	require.NoError(t, err)
	_, err = c.UpcomingEvents(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, "/prm/api/upcoming", gotPath)
}

func TestClient_SendsConfiguredHeaders(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-CSRF-Token")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("X-CSRF-Token", "tok")
	c, err := NewClient(Config{BaseURL: srv.URL, Headers: headers}, srv.Client())
	require.NoError(t, err)
	headers.Set("X-CSRF-Token", "changed")

	_, err = c.Recipients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", gotToken)
}

func TestSessionCookies(t *testing.T) {
	cookies := []*http.Cookie{
		{Name: "_gorilla_csrf", Value: "x"},
		{Name: "JSESSIONID", Value: "abc"},
		{Name: "parishweb_visitor", Value: "v"},
		{Name: "SESSION", Value: "def"},
	}
	got := SessionCookies(cookies, []string{"SESSION", "JSESSIONID"})
	require.Len(t, got, 2)
	assert.Equal(t, "JSESSIONID", got[0].Name)
	assert.Equal(t, "SESSION", got[1].Name)
	assert.Empty(t, SessionCookies(cookies, nil))
}
