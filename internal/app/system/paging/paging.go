// internal/app/system/paging/paging.go
package paging

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultLimit is the page size used when the request does not give one.
const DefaultLimit = 10

// MaxLimit caps client-requested page sizes.
const MaxLimit = 100

// MaxPage caps the page number so the skip offset cannot overflow.
const MaxPage = 1<<31 - 1

// Page is an offset/limit window over a list. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Parse reads the "page" and "limit" query parameters. Missing or invalid
// values fall back to page 1 and DefaultLimit.
func Parse(r *http.Request) Page {
	return Page{
		Page:  positiveInt(query.Get(r, "page"), 1, MaxPage),
		Limit: positiveInt(query.Get(r, "limit"), DefaultLimit, MaxLimit),
	}
}

// Skip is the number of records before this page.
func (p Page) Skip() int64 {
	page := min(max(p.Page, 1), MaxPage)
	return int64(page-1) * int64(p.Limit)
}

// Limit64 is the page size as int64 for Mongo Find().SetLimit().
func (p Page) Limit64() int64 { return int64(p.Limit) }

// Range holds the 1-based record positions covered by a page.
type Range struct {
	Start int64 // first record on the page
	End   int64 // last record on the page
	Total int64
}

// Count is the number of records on the page.
func (rg Range) Count() int64 {
	if rg.Start > rg.Total {
		return 0
	}
	return rg.End - rg.Start + 1
}

// ComputeRange works out which records a page covers given the total.
func ComputeRange(p Page, total int64) Range {
	start := p.Skip() + 1
	end := p.Skip() + p.Limit64()
	if end > total {
		end = total
	}
	return Range{Start: start, End: end, Total: total}
}

// Summary describes a page of records for the response message, e.g.
// "Fetched 10 user records out of 42 records from record 11 to record 20".
func Summary(noun string, p Page, total int64) string {
	if total < 1 {
		return "No data in database"
	}
	rg := ComputeRange(p, total)
	if rg.Start > total {
		return fmt.Sprintf("No data beyond record %d", total)
	}
	return fmt.Sprintf("Fetched %d %s records out of %d records from record %d to record %d",
		rg.Count(), noun, total, rg.Start, rg.End)
}

func positiveInt(s string, def, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
