package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var unitDurations = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseDuration 解析 "10s"、"20M"、"48h"、"2d" 这样的时间字符串，
// 其余格式交给 time.ParseDuration
func ParseDuration(timeString string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(timeString))
	if s == "" {
		return 0, fmt.Errorf("invalid time format: %q", timeString)
	}
	if unit, ok := unitDurations[s[len(s)-1]]; ok {
		if number, err := strconv.Atoi(s[:len(s)-1]); err == nil {
			if number < 0 {
				return 0, fmt.Errorf("negative duration: %q", timeString)
			}
			return time.Duration(number) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time format: %q", timeString)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %q", timeString)
	}
	return d, nil
}

// MustParseDuration 解析失败时返回 fallback
func MustParseDuration(timeString string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(timeString)
	if err != nil {
		return fallback
	}
	return d
}
