package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var errNegativeDuration = errors.New("invalid duration value")

// ParseDuration accepts either a plain number of seconds or
// a Go duration string. Empty and "0" mean no duration.
func ParseDuration(val string) (time.Duration, error) {

	if val = strings.TrimSpace(val); val == "" || val == "0" {
		return 0, nil
	}

	if !isDigits(val) {

		duration, err := time.ParseDuration(val)
		if err != nil {
			return 0, err
		} else if duration < 0 {
			return 0, errNegativeDuration
		}

		return duration, nil
	}

	seconds, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}

	return time.Duration(seconds) * time.Second, nil
}

func isDigits(val string) bool {

	for _, next := range val {
		if next < '0' || next > '9' {
			return false
		}
	}

	return true
}
