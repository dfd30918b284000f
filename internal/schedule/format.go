package schedule

import (
	"fmt"
	"strings"
)

// FormatSimple renders a schedule as the compact per-theater movie list:
// one line per movie with a "+" marker for new-this-week, a "*" marker for
// limited showings, and the showing count.
func FormatSimple(s Schedule) string {
	if len(s.Theaters) == 0 {
		return "No upcoming showtimes at your theaters this week.\n"
	}
	var b strings.Builder
	for _, theater := range s.Theaters {
		b.WriteString(theater.Name)
		b.WriteString("\n")
		for _, m := range theater.Movies {
			newMark, limitedMark := " ", " "
			if m.New {
				newMark = "+"
			}
			if m.Limited {
				limitedMark = "*"
			}
			fmt.Fprintf(&b, "%s%s%s [x%d]\n", newMark, limitedMark, m.Name, m.Showings)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatDaily renders a schedule as a day-by-day breakdown per theater, each
// movie with its screening times.
func FormatDaily(s Schedule) string {
	if len(s.Theaters) == 0 {
		return "No upcoming showtimes at your theaters this week.\n"
	}
	var b strings.Builder
	for _, theater := range s.Theaters {
		b.WriteString(theater.Name)
		b.WriteString("\n")
		for _, day := range theater.Days {
			fmt.Fprintf(&b, "\t%s\n", day.Date)
			for _, showing := range day.Showings {
				fmt.Fprintf(&b, "\t\t%s @ %s\n", showing.Movie, strings.Join(showing.Times, ", "))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
