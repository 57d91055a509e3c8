package gtfs

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDaySeconds parses HH:MM:SS (or HH:MM) possibly with hours >= 24.
func ParseDaySeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		if i > 0 && v > 59 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		vals[i] = v
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], nil
}
