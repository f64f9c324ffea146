package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultWindow is the cache radius used when none is configured.
	DefaultWindow = "7d"

	day = 24 * time.Hour
)

var (
	windowPattern = regexp.MustCompile(`^\s*(\d+)\s*([a-z]+)`)
	unitMap       = map[string]time.Duration{
		"h":     time.Hour,
		"hr":    time.Hour,
		"hrs":   time.Hour,
		"hour":  time.Hour,
		"hours": time.Hour,
		"d":     day,
		"day":   day,
		"days":  day,
		"w":     7 * day,
		"wk":    7 * day,
		"wks":   7 * day,
		"week":  7 * day,
		"weeks": 7 * day,
	}
)

// ParseWindow parses a human-friendly span such as "7d", "2w" or "1w3d" and
// returns the duration with its canonical label. Empty input yields
// DefaultWindow.
func ParseWindow(input string) (time.Duration, string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		trimmed = DefaultWindow
	}

	remaining := strings.ToLower(trimmed)
	total := time.Duration(0)
	for len(remaining) > 0 {
		matches := windowPattern.FindStringSubmatch(remaining)
		if len(matches) != 3 {
			return 0, "", fmt.Errorf("timeutil: invalid window segment %q", strings.TrimSpace(remaining))
		}
		value, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("timeutil: invalid window value %q: %w", matches[1], err)
		}
		base, ok := unitMap[matches[2]]
		if !ok {
			return 0, "", fmt.Errorf("timeutil: unsupported window unit %q", matches[2])
		}
		total += time.Duration(value) * base
		remaining = remaining[len(matches[0]):]
	}

	if total <= 0 {
		return 0, "", fmt.Errorf("timeutil: window must be greater than zero")
	}
	return total, FormatWindow(total), nil
}

// FormatWindow renders a span using week/day/hour tokens.
func FormatWindow(d time.Duration) string {
	if d <= 0 {
		return "0d"
	}
	units := []struct {
		label string
		value time.Duration
	}{
		{"w", 7 * day},
		{"d", day},
		{"h", time.Hour},
	}

	var b strings.Builder
	remaining := d
	for _, u := range units {
		if remaining < u.value {
			continue
		}
		count := remaining / u.value
		remaining -= count * u.value
		fmt.Fprintf(&b, "%d%s", count, u.label)
	}
	if b.Len() == 0 {
		return "0d"
	}
	return b.String()
}

// WindowDays converts a span to a whole number of days, rounding partial days
// up. The result is at least 1.
func WindowDays(d time.Duration) int {
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}
