package naming

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Template placeholders
	PlaceholderDate = "{{date}}"
	PlaceholderTime = "{{time}}"

	// DefaultSeparator joins the numeric components of date and time
	DefaultSeparator = "-"
)

// FormatDate renders the UTC calendar date of t as YYYY<sep>MM<sep>DD
func FormatDate(t time.Time, sep string) string {
	t = t.UTC()
	return fmt.Sprintf("%04d%s%02d%s%02d", t.Year(), sep, int(t.Month()), sep, t.Day())
}

// FormatTime renders the UTC clock time of t as HH<sep>MM<sep>SS
func FormatTime(t time.Time, sep string) string {
	t = t.UTC()
	return fmt.Sprintf("%02d%s%02d%s%02d", t.Hour(), sep, t.Minute(), sep, t.Second())
}

// Render substitutes the first {{date}} and the first {{time}} in template
// with the instant at. Any further occurrences and all other text are kept
// as-is. An empty sep falls back to DefaultSeparator.
//
//	Render("backup-{{date}}-{{time}}.tar", 2024-03-05T07:08:09Z, "-")
//	  => "backup-2024-03-05-07-08-09.tar"
func Render(template string, at time.Time, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}

	out := strings.Replace(template, PlaceholderDate, FormatDate(at, sep), 1)
	return strings.Replace(out, PlaceholderTime, FormatTime(at, sep), 1)
}
