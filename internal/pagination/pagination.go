package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	PreviousLabel = "&laquo; Previous"
	NextLabel     = "Next &raquo;"
	Ellipsis      = "..."

	// pages shown on each side of the current one once the window slides
	onEachSide = 3
)

// Page describes one page of a result set of Total items
type Page struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// Link is a single entry of the page navigation. URL is nil for disabled
// entries and separators.
type Link struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// ParsePage reads a page number the way query strings deliver it; anything
// missing, malformed or below one yields the first page.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// New computes page bounds for total items split into perPage-sized pages
func New(total, perPage, currentPage int) Page {
	if perPage < 1 {
		perPage = 1
	}
	if currentPage < 1 {
		currentPage = 1
	}
	// keep Offset from overflowing on absurd page numbers
	if maxPage := math.MaxInt32 / perPage; currentPage > maxPage {
		currentPage = maxPage
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	p := Page{
		CurrentPage: currentPage,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
	}

	if offset := p.Offset(); offset < total {
		p.From = offset + 1
		p.To = min(offset+perPage, total)
	}

	return p
}

// Offset is the number of items preceding the current page
func (p Page) Offset() int {
	return (p.CurrentPage - 1) * p.PerPage
}

// Links builds the navigation for p. Every URL keeps the entries of query and
// sets its page parameter.
func (p Page) Links(path string, query url.Values) []Link {
	urlFor := func(page int) *string {
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("page", strconv.Itoa(page))
		u := path + "?" + q.Encode()
		return &u
	}

	links := make([]Link, 0, 2*onEachSide+9)

	prev := Link{Label: PreviousLabel}
	if p.CurrentPage > 1 {
		prev.URL = urlFor(p.CurrentPage - 1)
	}
	links = append(links, prev)

	for _, page := range p.window() {
		if page == 0 {
			links = append(links, Link{Label: Ellipsis})
			continue
		}
		links = append(links, Link{
			URL:    urlFor(page),
			Label:  strconv.Itoa(page),
			Active: page == p.CurrentPage,
		})
	}

	next := Link{Label: NextLabel}
	if p.CurrentPage < p.LastPage {
		next.URL = urlFor(p.CurrentPage + 1)
	}
	links = append(links, next)

	return links
}

// window lists the page numbers to show, with 0 marking a gap
func (p Page) window() []int {
	last, current := p.LastPage, p.CurrentPage

	if last < onEachSide*2+8 {
		return pageRange(1, last)
	}

	window := onEachSide + 4
	var out []int

	switch {
	case current <= window:
		out = append(out, pageRange(1, window+onEachSide)...)
		out = append(out, 0)
		out = append(out, pageRange(last-1, last)...)
	case current > last-window:
		out = append(out, pageRange(1, 2)...)
		out = append(out, 0)
		out = append(out, pageRange(last-(window+onEachSide-1), last)...)
	default:
		out = append(out, pageRange(1, 2)...)
		out = append(out, 0)
		out = append(out, pageRange(current-onEachSide, current+onEachSide)...)
		out = append(out, 0)
		out = append(out, pageRange(last-1, last)...)
	}

	return out
}

func pageRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
