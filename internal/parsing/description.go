package parsing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"remnantsync/internal/model"
)

// ErrNoDimensions means the description has no usable <w>x<h> size. The row
// should be skipped and the crawl continued.
var ErrNoDimensions = errors.New("no dimensions in description")

// IDError is returned when the leading #<id> segment is not an integer.
type IDError struct {
	Raw string
	Err error
}

func (e *IDError) Error() string {
	return fmt.Sprintf("invalid remnant id %q: %v", e.Raw, e.Err)
}

func (e *IDError) Unwrap() error { return e.Err }

var (
	separatorRegex = regexp.MustCompile(`\s*[|/]\s*`)
	sizeRegex      = regexp.MustCompile(`(\d+)x(\d+)`)
	remnantIDRegex = regexp.MustCompile(`#(\d+)`)
)

// ParseDescription parses a files-table description cell such as
//
//	"#48 | 42x60 | Sold"
//	"#49 | 42x60+18x24 | On Hold"
//	"#50 / 42x60"
//
// into a remnant. Material, name and image url are left for the caller.
func ParseDescription(description string) (model.Remnant, error) {
	var parts []string
	for _, p := range separatorRegex.Split(description, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}

	var raw string
	if len(parts) > 0 {
		raw = parts[0]
	}
	id, err := strconv.Atoi(strings.TrimSpace(strings.Trim(raw, "#")))
	if err != nil {
		return model.Remnant{}, &IDError{Raw: raw, Err: err}
	}
	if id <= 0 {
		return model.Remnant{}, &IDError{Raw: raw, Err: errors.New("id must be positive")}
	}

	if len(parts) < 2 {
		return model.Remnant{}, ErrNoDimensions
	}
	sizes := strings.Split(strings.ToLower(strings.ReplaceAll(parts[1], " ", "")), "+")

	width, height, ok := parseSize(sizes[0])
	if !ok {
		return model.Remnant{}, ErrNoDimensions
	}

	r := model.Remnant{
		ID:        id,
		Width:     width,
		Height:    height,
		Status:    model.StatusAvailable,
		Thickness: ExtractThickness(description),
	}

	if len(sizes) > 1 {
		if w, h, ok := parseSize(sizes[1]); ok {
			r.LShaped = true
			r.SubWidth = &w
			r.SubHeight = &h
		}
	}

	if len(parts) > 2 {
		r.Status = parseStatus(parts[2])
	}

	return r, nil
}

func parseSize(s string) (int, int, bool) {
	m := sizeRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

func parseStatus(s string) model.Status {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "sold"):
		return model.StatusSold
	case strings.Contains(s, "hold"):
		return model.StatusHold
	default:
		return model.StatusAvailable
	}
}

// FindRemnantID returns the first #<digits> token in text.
func FindRemnantID(text string) (int, bool) {
	m := remnantIDRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}
