package controllers

import "strconv"

// pageWindowSize is how many page numbers the pager shows at most.
const pageWindowSize = 4

// PageWindow describes the pager strip rendered under a listing: the
// visible page numbers, the ellipsis markers around them, and the
// prev/next disabled flags. Disabling is presentation-only; out-of-range
// pages simply yield an empty slice.
type PageWindow struct {
	Pages            []int `json:"pages"`
	LeadingEllipsis  bool  `json:"leading_ellipsis"`
	TrailingEllipsis bool  `json:"trailing_ellipsis"`
	PrevDisabled     bool  `json:"prev_disabled"`
	NextDisabled     bool  `json:"next_disabled"`
}

// totalPages computes ceil(total/pageSize).
func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// computeWindow picks the up-to-four page numbers to display.
//
// On page 1 the window is pinned to the front and a trailing ellipsis is
// shown whenever more than one page exists. Past page 1 the window starts
// at the current page while at least a full window remains, otherwise it
// is pinned to the last pageWindowSize pages; ellipses then mark hidden
// pages on either side.
func computeWindow(page, total int) PageWindow {
	w := PageWindow{
		Pages:        []int{},
		PrevDisabled: page <= 1,
		NextDisabled: page >= total,
	}
	if total < 1 {
		return w
	}

	var start int
	switch {
	case page <= 1:
		start = 1
		w.TrailingEllipsis = total > 1
	case total-page+1 >= pageWindowSize:
		start = page
	default:
		start = total - pageWindowSize + 1
		if start < 1 {
			start = 1
		}
	}

	end := start + pageWindowSize - 1
	if end > total {
		end = total
	}
	for p := start; p <= end; p++ {
		w.Pages = append(w.Pages, p)
	}

	w.LeadingEllipsis = start > 1
	if page > 1 {
		w.TrailingEllipsis = end < total
	}
	return w
}

// parsePage reads a 1-based page query parameter, defaulting to 1.
func parsePage(raw string) int {
	if p, err := strconv.Atoi(raw); err == nil && p > 0 {
		return p
	}
	return 1
}
