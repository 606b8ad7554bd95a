package conflictcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"parishweb/internal/adapters/backend"
	"parishweb/internal/adapters/dom"
	"parishweb/internal/domain/conflict"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes and page fixtures ---

type result struct {
	report conflict.Report
	err    error
}

type call struct {
	subjectID string
	snap      conflict.Snapshot
	reply     chan result
}

// fakeSource hands every request to the test and blocks until it is answered.
type fakeSource struct {
	calls chan call
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(chan call, 16)}
}

func (f *fakeSource) CheckConflicts(ctx context.Context, subjectID string, snap conflict.Snapshot) (conflict.Report, error) {
	c := call{subjectID: subjectID, snap: snap, reply: make(chan result, 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.report, r.err
	case <-ctx.Done():
		return conflict.Report{}, ctx.Err()
	}
}

func (f *fakeSource) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a conflict check request")
		return call{}
	}
}

// buildPage returns a document carrying both event forms for subject 42.
func buildPage(withSubject bool) *dom.Document {
	d := dom.NewDocument()
	container := dom.NewElement("div", "parishionerView")
	if withSubject {
		container.SetAttribute(conflict.SubjectAttribute, "42")
	}
	for _, v := range conflict.Variants {
		f := v.Fields()
		start := dom.NewElement("select", f.StartTime)
		start.SetOptions([]dom.Option{{Value: ""}, {Value: "09:00"}, {Value: "09:30"}})
		end := dom.NewElement("select", f.EndTime)
		end.SetOptions([]dom.Option{{Value: ""}, {Value: "10:00"}})
		participants := dom.NewElement("select", f.Participants).SetMultiple(true)
		participants.SetOptions([]dom.Option{{Value: "12"}, {Value: "30"}, {Value: "45"}})
		container.AppendChild(
			dom.NewElement("input", f.EventDate),
			start, end, participants,
			dom.NewElement("div", f.Panel),
		)
	}
	d.Append(container)
	return d
}

func startLoop(t *testing.T, d *dom.Document) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func onLoop(t *testing.T, d *dom.Document, fn func()) {
	t.Helper()
	require.NoError(t, d.Do(fn))
}

// settle waits for in-flight checks and lets their completions run.
func settle(t *testing.T, d *dom.Document, c *Checker) {
	t.Helper()
	c.Wait()
	onLoop(t, d, func() {})
}

func newChecker(t *testing.T, d *dom.Document, src Source) *Checker {
	t.Helper()
	c := New(d, src)
	t.Cleanup(func() {
		c.Close()
		c.Wait()
	})
	return c
}

func entry(name, title, date, tm string) conflict.Entry {
	return conflict.Entry{ParishionerName: name, EventTitle: title, EventDate: date, EventTime: tm}
}

// --- initialization ---

func TestInitialize_InertWithoutSubject(t *testing.T) {
	d := buildPage(false)
	startLoop(t, d)
	c := newChecker(t, d, newFakeSource())

	var wired bool
	onLoop(t, d, func() { wired = c.Initialize() })
	assert.False(t, wired)
	onLoop(t, d, func() {
		for _, v := range conflict.Variants {
			for _, id := range v.Fields().TriggerIDs() {
				assert.Zero(t, d.ElementByID(id).ListenerCount("change"), id)
			}
		}
	})
}

func TestInitialize_WiresBothVariants(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	c := newChecker(t, d, newFakeSource())

	var wired bool
	onLoop(t, d, func() { wired = c.Initialize() })
	require.True(t, wired)
	onLoop(t, d, func() {
		for _, v := range conflict.Variants {
			for _, id := range v.Fields().TriggerIDs() {
				assert.Equal(t, 1, d.ElementByID(id).ListenerCount("change"), id)
			}
		}
	})
}

func TestSetupForm_SkipsMissingFields(t *testing.T) {
	d := dom.NewDocument()
	d.Append(dom.NewElement("input", "regularEventDate"))
	startLoop(t, d)
	c := newChecker(t, d, newFakeSource())

	onLoop(t, d, func() {
		c.SetupForm("42", conflict.VariantRegular)
		assert.Equal(t, 1, d.ElementByID("regularEventDate").ListenerCount("change"))
	})
}

// --- checks ---

func TestCheckConflicts_EmptyDateHidesWithoutRequest(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		panel := d.ElementByID("regularEventConflictWarning")
		panel.SetInnerHTML("old warning")
		panel.SetDisplay(dom.DisplayBlock)
		d.ElementByID("regularStartTime").SetValue("09:00")
		d.ElementByID("regularStartTime").Dispatch("change")
	})
	settle(t, d, c)

	assert.Zero(t, len(src.calls), "no request without a date")
	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		assert.Empty(t, panel.InnerHTML())
		assert.Equal(t, dom.DisplayNone, panel.Display())
	})
}

func TestCheckConflicts_OneRequestPerChange(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		d.ElementByID("sacramentEventDate").SetValue("2025-12-25")
		d.ElementByID("sacramentStartTime").SetValue("09:00")
		d.ElementByID("sacramentEndTime").SetValue("10:00")
		d.ElementByID("sacramentAdditionalParticipants").Select("45", "12")
		d.ElementByID("sacramentEventDate").Dispatch("change")
	})

	got := src.next(t)
	assert.Equal(t, "42", got.subjectID)
	assert.Equal(t, conflict.Snapshot{
		EventDate:      "2025-12-25",
		StartTime:      "09:00",
		EndTime:        "10:00",
		ParticipantIDs: []string{"12", "45"},
	}, got.snap)
	assert.Equal(t, "eventDate=2025-12-25&startTime=09%3A00&endTime=10%3A00&additionalParticipants=12%2C45", got.snap.Encode())

	got.reply <- result{report: conflict.NewReport(nil, nil)}
	settle(t, d, c)
	assert.Zero(t, len(src.calls), "exactly one request per change")
}

func TestCheckConflicts_RendersEveryConflict(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	report := conflict.NewReport(
		[]conflict.Entry{
			entry("J. Doe", "Baptism", "2025-12-25", "09:00"),
			entry("M. Smith", "Memorial", "2025-12-25", ""),
		},
		[]conflict.Entry{entry("", "Vespers", "2025-12-25", "18:00")},
	)
	src.next(t).reply <- result{report: report}
	settle(t, d, c)

	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		html := panel.InnerHTML()
		assert.Equal(t, dom.DisplayBlock, panel.Display())
		assert.Equal(t, 3, strings.Count(html, "<li>"))
		assert.Contains(t, html, "Found 3 conflict(s):")
		assert.Contains(t, html, "In Local Calendar:")
		assert.Contains(t, html, "In Google Calendar:")
		assert.Contains(t, html, "<strong>Vespers</strong> on 2025-12-25 at 18:00")
		assert.Contains(t, html, "Memorial on 2025-12-25 (all-day)")

		sacrament := d.ElementByID("sacramentConflictWarning")
		assert.Empty(t, sacrament.InnerHTML(), "other variant untouched")
	})
}

func TestCheckConflicts_NoConflictsClearsPanel(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	src.next(t).reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Baptism", "2025-12-25", "09:00")}, nil)}
	settle(t, d, c)

	onLoop(t, d, func() {
		d.ElementByID("regularEventDate").SetValue("2025-12-26")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	src.next(t).reply <- result{report: conflict.Report{HasConflicts: false, DatabaseConflicts: []conflict.Entry{}, GoogleCalendarConflicts: []conflict.Entry{}}}
	settle(t, d, c)

	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		assert.Empty(t, panel.InnerHTML())
		assert.Equal(t, dom.DisplayNone, panel.Display())
	})
}

func TestCheckConflicts_FailureHidesPanel(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		panel := d.ElementByID("regularEventConflictWarning")
		panel.SetInnerHTML("previous warning")
		panel.SetDisplay(dom.DisplayBlock)
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	src.next(t).reply <- result{err: backend.ErrUnexpectedStatus}
	settle(t, d, c)

	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		assert.Empty(t, panel.InnerHTML())
		assert.Equal(t, dom.DisplayNone, panel.Display())
	})
}

// TestCheckConflicts_StaleResponseDiscarded covers an older answer arriving
// after a newer one: the panel must keep the newer answer.
func TestCheckConflicts_StaleResponseDiscarded(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		date := d.ElementByID("regularEventDate")
		date.SetValue("2025-12-25")
		date.Dispatch("change")
		date.SetValue("2025-12-26")
		date.Dispatch("change")
	})
	older := src.next(t)
	newer := src.next(t)
	require.Equal(t, "2025-12-25", older.snap.EventDate)
	require.Equal(t, "2025-12-26", newer.snap.EventDate)

	newer.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Newer", "2025-12-26", "09:00")}, nil)}
	// Let the newer completion land before the older one returns.
	require.Eventually(t, func() bool {
		var html string
		_ = d.Do(func() { html = d.ElementByID("regularEventConflictWarning").InnerHTML() })
		return strings.Contains(html, "Newer")
	}, 2*time.Second, 5*time.Millisecond)

	older.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Older", "2025-12-25", "09:00")}, nil)}
	settle(t, d, c)

	onLoop(t, d, func() {
		html := d.ElementByID("regularEventConflictWarning").InnerHTML()
		assert.Contains(t, html, "Newer")
		assert.NotContains(t, html, "Older")
	})
}

// TestCheckConflicts_ClearedDateDropsPendingAnswer covers clearing the date
// while a check for the earlier date is still running.
func TestCheckConflicts_ClearedDateDropsPendingAnswer(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		date := d.ElementByID("regularEventDate")
		date.SetValue("2025-12-25")
		date.Dispatch("change")
	})
	pending := src.next(t)

	onLoop(t, d, func() {
		date := d.ElementByID("regularEventDate")
		date.SetValue("")
		date.Dispatch("change")
	})
	pending.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Baptism", "2025-12-25", "09:00")}, nil)}
	settle(t, d, c)

	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		assert.Equal(t, "", d.ElementByID("regularEventDate").Value())
		assert.Equal(t, dom.DisplayNone, panel.Display())
		assert.Empty(t, panel.InnerHTML())
	})
}

// TestCheckConflicts_UnnamedVariantSharesRegularOrdering checks that the
// unnamed variant and the regular one are the same form for ordering.
func TestCheckConflicts_UnnamedVariantSharesRegularOrdering(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		c.CheckConflicts("42", conflict.Variant(""))
		d.ElementByID("regularEventDate").SetValue("2025-12-26")
		c.CheckConflicts("42", conflict.VariantRegular)
	})
	older := src.next(t)
	newer := src.next(t)
	require.Equal(t, "2025-12-25", older.snap.EventDate)

	newer.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Newer", "2025-12-26", "09:00")}, nil)}
	require.Eventually(t, func() bool {
		var html string
		_ = d.Do(func() { html = d.ElementByID("regularEventConflictWarning").InnerHTML() })
		return strings.Contains(html, "Newer")
	}, 2*time.Second, 5*time.Millisecond)

	older.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Older", "2025-12-25", "09:00")}, nil)}
	settle(t, d, c)

	onLoop(t, d, func() {
		html := d.ElementByID("regularEventConflictWarning").InnerHTML()
		assert.Contains(t, html, "Newer")
		assert.NotContains(t, html, "Older")
	})
}

func TestCheckConflicts_StaleFailureDoesNotHideNewerAnswer(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		date := d.ElementByID("regularEventDate")
		date.SetValue("2025-12-25")
		date.Dispatch("change")
		d.ElementByID("regularStartTime").SetValue("09:30")
		d.ElementByID("regularStartTime").Dispatch("change")
	})
	older := src.next(t)
	newer := src.next(t)

	newer.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Liturgy", "2025-12-25", "09:30")}, nil)}
	older.reply <- result{err: errors.New("connection reset")}
	settle(t, d, c)

	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		assert.Contains(t, panel.InnerHTML(), "Liturgy")
		assert.Equal(t, dom.DisplayBlock, panel.Display())
	})
}

func TestCheckConflicts_VariantsAreIndependent(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := newChecker(t, d, src)

	onLoop(t, d, func() {
		c.Initialize()
		d.ElementByID("sacramentEventDate").SetValue("2025-12-25")
		d.ElementByID("sacramentEventDate").Dispatch("change")
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	sacrament := src.next(t)
	regular := src.next(t)
	regular.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Moleben", "2025-12-25", "")}, nil)}
	sacrament.reply <- result{report: conflict.NewReport([]conflict.Entry{entry("J. Doe", "Baptism", "2025-12-25", "09:00")}, nil)}
	settle(t, d, c)

	onLoop(t, d, func() {
		assert.Contains(t, d.ElementByID("sacramentConflictWarning").InnerHTML(), "Baptism")
		assert.Contains(t, d.ElementByID("regularEventConflictWarning").InnerHTML(), "Moleben")
	})
}

func TestClose_CancelsInFlightAndDropsCompletion(t *testing.T) {
	d := buildPage(true)
	startLoop(t, d)
	src := newFakeSource()
	c := New(d, src)

	onLoop(t, d, func() {
		c.Initialize()
		d.ElementByID("regularEventConflictWarning").SetInnerHTML("previous warning")
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	src.next(t)
	c.Close()
	settle(t, d, c)

	onLoop(t, d, func() {
		assert.Equal(t, "previous warning", d.ElementByID("regularEventConflictWarning").InnerHTML())
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	settle(t, d, c)
	assert.Zero(t, len(src.calls), "closed checker starts no requests")
}

// --- against a real HTTP backend ---

func TestChecker_AgainstBackend(t *testing.T) {
	queries := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hasConflicts":true,"conflictCount":1,"databaseConflicts":[{"parishionerName":"J. Doe","eventTitle":"Baptism","eventDate":"2025-12-25","eventTime":"09:00"}],"googleCalendarConflicts":[]}`))
	}))
	defer srv.Close()

	client, err := backend.NewClient(backend.Config{BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	d := buildPage(true)
	startLoop(t, d)
	c := newChecker(t, d, client)

	onLoop(t, d, func() {
		c.Initialize()
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	settle(t, d, c)

	assert.Equal(t, "eventDate=2025-12-25", <-queries)
	onLoop(t, d, func() {
		html := d.ElementByID("regularEventConflictWarning").InnerHTML()
		assert.Equal(t, 1, strings.Count(html, "<li>"))
		assert.Contains(t, html, "<strong>J. Doe</strong> - Baptism on 2025-12-25 at 09:00")
	})
}

func TestChecker_UnreachableBackendHidesPanel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := backend.NewClient(backend.Config{BaseURL: url}, &http.Client{Transport: &http.Transport{DisableKeepAlives: true}})
	require.NoError(t, err)

	d := buildPage(true)
	startLoop(t, d)
	c := newChecker(t, d, client)

	onLoop(t, d, func() {
		c.Initialize()
		panel := d.ElementByID("regularEventConflictWarning")
		panel.SetInnerHTML("previous warning")
		panel.SetDisplay(dom.DisplayBlock)
		d.ElementByID("regularEventDate").SetValue("2025-12-25")
		d.ElementByID("regularEventDate").Dispatch("change")
	})
	settle(t, d, c)

	onLoop(t, d, func() {
		panel := d.ElementByID("regularEventConflictWarning")
		assert.Empty(t, panel.InnerHTML())
		assert.Equal(t, dom.DisplayNone, panel.Display())
	})
}
