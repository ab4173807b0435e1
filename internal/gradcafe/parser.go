package gradcafe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// fragmentSeparator is the literal token the site places between the
// structured pieces of a detail row.
const fragmentSeparator = " | "

// commentJoin glues unmatched fragments together in encounter order.
const commentJoin = " "

// statusJoin separates an original decision from a later status update.
// Updates are concatenated, never overwritten, so both survive.
const statusJoin = "; "

var (
	termRe       = regexp.MustCompile(`(?i)^(fall|spring|summer|winter)\s+\d{4}$`)
	gpaRe        = regexp.MustCompile(`(?i)^gpa\s+\d+(\.\d+)?$`)
	resultHrefRe = regexp.MustCompile(`/result/`)
	pageHrefRe   = regexp.MustCompile(`\?page=(\d+)`)
)

var statusKeywords = []string{"accepted", "rejected", "interview", "wait"}

// ParseSurvey converts one survey page into records. The parser is
// defensive: a page without the results table yields an empty slice,
// and empty cells become empty-string fields rather than errors.
func ParseSurvey(pageHTML string) ([]SurveyRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	acc := newRowAccumulator()
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		switch cells.Length() {
		case 5:
			acc.startRecord(parseMainRow(cells))
		case 1:
			acc.addDetail(cellFragments(cells.First()))
		}
	})
	return acc.finish(), nil
}

// rowAccumulator is the two-state machine over table rows: state A waits
// for a 5-cell main row, state B folds 1-cell detail rows into the
// current record until the next main row (or end of input) emits it.
type rowAccumulator struct {
	out      []SurveyRecord
	cur      *SurveyRecord
	comments []string
}

func newRowAccumulator() *rowAccumulator {
	return &rowAccumulator{}
}

func (a *rowAccumulator) startRecord(rec SurveyRecord) {
	a.emit()
	a.cur = &rec
}

func (a *rowAccumulator) addDetail(fragments []string) {
	if a.cur == nil {
		// Detail row before any main row; nothing to attach it to.
		return
	}
	for _, frag := range fragments {
		a.classifyFragment(frag)
	}
}

func (a *rowAccumulator) emit() {
	if a.cur == nil {
		return
	}
	a.cur.Comments = strings.Join(a.comments, commentJoin)
	a.out = append(a.out, *a.cur)
	a.cur = nil
	a.comments = nil
}

func (a *rowAccumulator) finish() []SurveyRecord {
	a.emit()
	return a.out
}

// classifyFragment assigns one pipe-separated fragment to the first
// structured field it matches; anything unmatched becomes a comment.
func (a *rowAccumulator) classifyFragment(frag string) {
	lower := strings.ToLower(frag)
	switch {
	case termRe.MatchString(frag):
		a.cur.Term = frag
	case lower == "international":
		a.cur.Nationality = "International"
	case lower == "american":
		a.cur.Nationality = "American"
	case gpaRe.MatchString(frag):
		// The full fragment, not the bare number.
		a.cur.GPA = frag
	case strings.HasPrefix(lower, "gre v"):
		a.cur.GREV = frag
	case strings.HasPrefix(lower, "gre aw"):
		a.cur.GREAW = frag
	case strings.HasPrefix(lower, "gre q"):
		a.cur.GREQ = frag
	case strings.HasPrefix(lower, "gre"):
		a.cur.GRE = frag
	case isStatusUpdate(frag, lower):
		if a.cur.Status == "" {
			a.cur.Status = frag
		} else {
			a.cur.Status += statusJoin + frag
		}
	default:
		a.comments = append(a.comments, frag)
	}
}

func isStatusUpdate(frag, lower string) bool {
	if len(frag) >= 50 {
		return false
	}
	for _, kw := range statusKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseMainRow builds a fresh record from a 5-cell main row. Optional
// fields start as empty strings so every record carries all keys.
func parseMainRow(cells *goquery.Selection) SurveyRecord {
	school := cleanText(cells.Eq(0).Text())

	programParts := cellFragments(cells.Eq(1))
	programName := ""
	if len(programParts) > 0 {
		programName = programParts[0]
	}

	rec := SurveyRecord{
		Program:   programName + ", " + school,
		DateAdded: "Added on " + cleanText(cells.Eq(2).Text()),
		Status:    cleanText(cells.Eq(3).Text()),
	}
	if len(programParts) > 1 {
		rec.Degree = normalizeDegree(programParts[1])
	}
	rec.URL = resultURL(cells.Eq(4))
	return rec
}

func normalizeDegree(raw string) string {
	degree := strings.TrimSpace(raw)
	lower := strings.ToLower(degree)
	switch {
	case strings.Contains(lower, "phd"):
		return "PhD"
	case strings.Contains(lower, "master"):
		return "Masters"
	}
	switch degree {
	case "MS", "MA", "MFA", "MBA", "MEng":
		return "Masters"
	}
	return degree
}

// resultURL extracts the submission URL from the links cell. Absolute
// hrefs are kept verbatim; site-relative ones are joined to the origin.
func resultURL(cell *goquery.Selection) string {
	href := ""
	cell.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		h, _ := link.Attr("href")
		if resultHrefRe.MatchString(h) {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return SiteOrigin + href
	}
	return href
}

// MaxPages extracts the highest page number advertised by the pagination
// links on a page. Missing or malformed pagination means a single page.
func MaxPages(pageHTML string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return 1
	}
	maxPage := 1
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		m := pageHrefRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
			maxPage = n
		}
	})
	return maxPage
}

// cellFragments walks a cell's text nodes and returns the trimmed,
// non-empty pieces, additionally split on the literal " | " separator.
// Nested markup (badges, spans) therefore yields one fragment per piece,
// matching how the site interleaves structured tokens and free text.
func cellFragments(cell *goquery.Selection) []string {
	var fragments []string
	for _, node := range cell.Nodes {
		collectTextFragments(node, &fragments)
	}
	return fragments
}

func collectTextFragments(n *html.Node, out *[]string) {
	if n.Type == html.TextNode {
		for _, piece := range strings.Split(n.Data, fragmentSeparator) {
			if trimmed := cleanText(piece); trimmed != "" {
				*out = append(*out, trimmed)
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextFragments(c, out)
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
