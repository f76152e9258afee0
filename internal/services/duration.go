package services

import (
	"regexp"
	"strconv"
)

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISO8601Duration converts durations such as "PT1H2M3S" or "P1DT2H" to
// seconds. Unparseable input yields 0.
func ParseISO8601Duration(s string) int {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	part := func(i int) int {
		if m[i] == "" {
			return 0
		}
		n, _ := strconv.Atoi(m[i])
		return n
	}
	return part(1)*86400 + part(2)*3600 + part(3)*60 + part(4)
}
