package pagination

import (
	"parishweb/internal/adapters/dom"
	"parishweb/internal/application/listutil"
)

// Element IDs and classes of the upcoming-events card.
const (
	ListID      = "upcomingEventsList"
	ItemClass   = "upcoming-event-item"
	PageInfoID  = "pageInfo"
	PrevID      = "prevPageBtn"
	NextID      = "nextPageBtn"
	FooterClass = "card-footer"
)

// Page is the part of a document the pagination touches.
type Page interface {
	ElementByID(id string) *dom.Element
	ElementsByClass(class string) []*dom.Element
}

// Pagination shows one page of upcoming events at a time.
type Pagination struct {
	page  Page
	list  *dom.Element
	items []*dom.Element
	pager *listutil.Pager
}

// Initialize paginates the upcoming-events list and wires the prev/next buttons.
// PRE: called on the page's loop
// POST: returns nil when the page has no list or the list is empty;
// an empty list also hides the card footer
func Initialize(page Page) *Pagination {
	list := page.ElementByID(ListID)
	if list == nil {
		return nil
	}
	items := list.QueryClass(ItemClass)
	if len(items) == 0 {
		if footers := page.ElementsByClass(FooterClass); len(footers) > 0 {
			footers[0].SetDisplay(dom.DisplayNone)
		}
		return nil
	}

	p := &Pagination{
		page:  page,
		list:  list,
		items: items,
		pager: listutil.NewPager(len(items), listutil.UpcomingPerPage),
	}
	if btn := page.ElementByID(PrevID); btn != nil {
		btn.AddEventListener("click", func(*dom.Event) { p.Prev() })
	}
	if btn := page.ElementByID(NextID); btn != nil {
		btn.AddEventListener("click", func(*dom.Event) { p.Next() })
	}
	p.render()
	return p
}

// Info returns the current page metadata.
func (p *Pagination) Info() listutil.PageInfo {
	return p.pager.Info()
}

// Next shows the following page and scrolls the list into view.
// POST: a no-op on the last page
func (p *Pagination) Next() {
	if p.pager.Next() {
		p.render()
		p.list.ScrollIntoView()
	}
}

// Prev shows the preceding page and scrolls the list into view.
// POST: a no-op on the first page
func (p *Pagination) Prev() {
	if p.pager.Prev() {
		p.render()
		p.list.ScrollIntoView()
	}
}

func (p *Pagination) render() {
	info := p.pager.Info()
	start, end := info.Bounds()
	for i, item := range p.items {
		if i >= start && i < end {
			item.SetDisplay(dom.DisplayListItem)
		} else {
			item.SetDisplay(dom.DisplayNone)
		}
	}
	if el := p.page.ElementByID(PageInfoID); el != nil {
		el.SetTextContent(info.Label())
	}
	if btn := p.page.ElementByID(PrevID); btn != nil {
		btn.SetDisabled(info.IsFirst())
	}
	if btn := p.page.ElementByID(NextID); btn != nil {
		btn.SetDisabled(info.IsLast())
	}
}
