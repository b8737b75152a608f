package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"remnantsync/internal/model"

	"github.com/PuerkitoBio/goquery"
)

type htmlForm struct {
	Action string
	Fields map[string]string
}

// loginForm is the login form plus the names its user and password inputs
// post under.
type loginForm struct {
	htmlForm
	UserField string
	PassField string
}

// formFields collects the successful controls of a form the way a browser
// would submit them, minus buttons that were not clicked.
func formFields(form *goquery.Selection, submit string) map[string]string {
	fields := map[string]string{}
	form.Find("input, textarea, select").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "textarea":
			fields[name] = s.Text()
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			fields[name] = opt.AttrOr("value", strings.TrimSpace(opt.Text()))
		default:
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset":
				if name != submit {
					return
				}
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				fields[name] = s.AttrOr("value", "on")
				return
			}
			fields[name] = s.AttrOr("value", "")
		}
	})
	return fields
}

func formAction(form *goquery.Selection, pageURL *url.URL) string {
	action := strings.TrimSpace(form.AttrOr("action", ""))
	if action == "" {
		return pageURL.String()
	}
	return resolve(pageURL, action)
}

func parseLoginForm(doc *goquery.Document, pageURL *url.URL) (loginForm, bool) {
	form := doc.Find("form#loginform").First()
	if form.Length() == 0 {
		form = doc.Find("#loginform").Closest("form")
	}
	if form.Length() == 0 {
		form = doc.Find("input#pwd, input[name=pwd]").Closest("form")
	}
	if form.Length() == 0 {
		return loginForm{}, false
	}
	return loginForm{
		htmlForm: htmlForm{
			Action: formAction(form, pageURL),
			Fields: formFields(form, "LOGIN"),
		},
		UserField: inputName(form, "user"),
		PassField: inputName(form, "pwd"),
	}, true
}

// inputName returns the name the input with the given id posts under,
// falling back to the id itself.
func inputName(form *goquery.Selection, id string) string {
	if name := strings.TrimSpace(form.Find("#" + id).AttrOr("name", "")); name != "" {
		return name
	}
	return id
}

func isLoggedIn(doc *goquery.Document, pageURL *url.URL) bool {
	if doc.Find("#loginform").Length() > 0 {
		return false
	}
	return strings.Contains(pageURL.Path, "/sys/")
}

// parseJobList returns the job detail links on one job list page and the
// url of the next page. An empty url means the list ended: there is no
// enabled Next control. An enabled control that is script-driven cannot be
// followed and returns ErrPagerNotFollowable.
func parseJobList(doc *goquery.Document, pageURL *url.URL) ([]string, string, error) {
	var links []string
	doc.Find("#Jobs_1Body tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		href := strings.TrimSpace(row.Find("td").First().Find("a").First().AttrOr("href", ""))
		if href == "" {
			return
		}
		links = append(links, resolve(pageURL, href))
	})

	control := doc.Find("span.pageNavEnabled.navPadLeft a").First()
	if control.Length() == 0 {
		return links, "", nil
	}
	next := strings.TrimSpace(control.AttrOr("href", ""))
	if next == "" || next == "#" || strings.HasPrefix(strings.ToLower(next), "javascript:") {
		return links, "", fmt.Errorf("%w: href %q", ErrPagerNotFollowable, next)
	}
	return links, resolve(pageURL, next), nil
}

var remnantTokenRegex = regexp.MustCompile(`#\d+`)

// parseJobPage reads the files table. Root-relative download hrefs are
// resolved against siteURL when it is set.
func parseJobPage(doc *goquery.Document, pageURL, siteURL *url.URL) (*model.JobPage, error) {
	body := doc.Find("#FilesScroll1Body")
	if body.Length() == 0 {
		return nil, ErrNoFilesTable
	}

	page := &model.JobPage{
		URL:   pageURL.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	body.Find("tr").Each(func(_ int, row *goquery.Selection) {
		tds := row.Find("td")
		r := model.FileRow{Cells: tds.Length()}
		if r.Cells < 2 {
			page.Rows = append(page.Rows, r)
			return
		}

		tds.EachWithBreak(func(_ int, td *goquery.Selection) bool {
			text := strings.TrimSpace(td.Text())
			if remnantTokenRegex.MatchString(text) {
				r.Description = text
				return false
			}
			return true
		})

		link := tds.Eq(1).Find("a").First()
		if link.Length() > 0 {
			r.HasDownloadLink = true
			if href := strings.TrimSpace(link.AttrOr("href", "")); href != "" {
				base := pageURL
				if siteURL != nil && strings.HasPrefix(href, "/") {
					base = siteURL
				}
				r.DownloadURL = resolve(base, href)
			}
		}
		page.Rows = append(page.Rows, r)
	})
	return page, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
