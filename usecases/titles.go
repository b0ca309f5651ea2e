package usecases

import (
	"fmt"
	"strconv"
	"strings"
)

// NextTitle returns the title following the highest YYYY-NNN title of year
// among existing. Titles of other years or other shapes are ignored. The
// sequence is compared numerically, so 2024-1000 follows 2024-999.
func NextTitle(year int, existing []string) string {
	prefix := titlePrefix(year)
	highest := 0
	for _, title := range existing {
		if !strings.HasPrefix(title, prefix) {
			continue
		}
		seq := title[len(prefix):]
		if len(seq) < 3 {
			continue
		}
		n, err := strconv.Atoi(seq)
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}

func titlePrefix(year int) string { return fmt.Sprintf("%04d-", year) }
