//go:build js && wasm

// Command page runs the parish pages' behaviour in the browser. It is built
// to static/page.wasm and started by static/boot.js.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall/js"

	"parishweb/internal/adapters/backend"
	"parishweb/internal/adapters/dom"
	"parishweb/internal/adapters/dom/jsdom"
	"parishweb/internal/application/compose"
	"parishweb/internal/application/conflictcheck"
	"parishweb/internal/application/pagination"
	"parishweb/internal/application/themetoggle"
	"parishweb/internal/application/timepicker"
	"parishweb/internal/domain/theme"
)

// csrfHeader is the request header gorilla/csrf reads the token from.
const csrfHeader = "X-CSRF-Token"

// readyAttr is set on <html> once every behaviour of the page is wired.
const readyAttr = "data-page-ready"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	browser := jsdom.Browser()
	mirror, err := dom.NewMirror(browser)
	if err != nil {
		slog.Error("page_start_failed", "error", err)
		return
	}
	doc := mirror.Document()

	loc := doc.Location()
	origin := (&url.URL{Scheme: loc.Scheme, Host: loc.Host}).String()
	headers := http.Header{}
	if token := csrfToken(); token != "" {
		headers.Set(csrfHeader, token)
	}
	client, err := backend.NewClient(backend.Config{BaseURL: origin, Headers: headers}, nil)
	if err != nil {
		slog.Error("page_start_failed", "error", err)
		return
	}

	ctx := context.Background()
	go func() {
		if err := doc.Run(ctx); err != nil {
			slog.Error("page_loop_stopped", "error", err)
		}
	}()
	jsdom.Attach(browser, mirror)

	var composing bool
	err = doc.Do(func() {
		// The server renders the visitor's stored theme; it wins over a stale local copy.
		if current, ok := doc.Root().Attribute(theme.Attribute); ok {
			doc.LocalStorage().SetItem(theme.StorageKey, current)
		}
		if themetoggle.Initialize(doc) {
			doc.ElementByID(themetoggle.ButtonID).AddEventListener("click", func(*dom.Event) {
				current, _ := doc.Root().Attribute(theme.Attribute)
				go saveTheme(origin, headers, current)
			})
		}
		timepicker.Initialize(doc)
		pagination.Initialize(doc)
		conflictcheck.New(doc, client).Initialize()
		composing = doc.ElementByID(compose.FormID) != nil
	})
	if err != nil {
		slog.Error("page_start_failed", "error", err)
		return
	}
	if composing {
		<-compose.Start(ctx, doc, client)
	}
	doc.Post(func() { doc.Root().SetAttribute(readyAttr, "true") })
	slog.Info("page_ready", "path", loc.Path)

	select {}
}

// csrfToken reads the token the layout puts in <meta name="csrf-token">.
func csrfToken() string {
	meta := js.Global().Get("document").Call("querySelector", `meta[name="csrf-token"]`)
	if meta.IsNull() {
		return ""
	}
	return meta.Call("getAttribute", "content").String()
}

// saveTheme stores the visitor's choice so the next page renders with it.
func saveTheme(origin string, headers http.Header, value string) {
	form := url.Values{"theme": {value}}
	req, err := http.NewRequest(http.MethodPost, origin+"/theme/toggle", strings.NewReader(form.Encode()))
	if err != nil {
		slog.Warn("theme_save_failed", "error", err)
		return
	}
	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Warn("theme_save_failed", "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("theme_save_failed", "status", resp.StatusCode)
	}
}
