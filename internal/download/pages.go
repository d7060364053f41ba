package download

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParsePages parses a part selection such as "1,3-5" into the part numbers
// it names, sorted and deduplicated. An empty spec selects every part.
func ParsePages(spec string) ([]int, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, nil
	}
	seen := map[int]bool{}
	var pages []int
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			pages = append(pages, n)
		}
	}
	for _, field := range strings.Split(trimmed, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if lo, hi, isRange := strings.Cut(field, "-"); isRange {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid part range %q", field)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid part range %q", field)
			}
			if start < 1 || end < start {
				return nil, fmt.Errorf("invalid part range %q", field)
			}
			for n := start; n <= end; n++ {
				add(n)
			}
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid part number %q", field)
		}
		add(n)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("part selection %q names no parts", spec)
	}
	sort.Ints(pages)
	return pages, nil
}
