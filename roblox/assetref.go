package roblox

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var gamePassLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)roblox\.com/game-pass/(\d+)`),
	regexp.MustCompile(`(?i)roblox\.com/catalog/(\d+)`),
	regexp.MustCompile(`(?i)[?&]id=(\d+)`),
}

// ParseGamePassRef extracts a gamepass ID from either a bare numeric ID
// or any of the storefront link shapes Roblox hands out.
func ParseGamePassRef(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("roblox: gamepass reference is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	for _, pattern := range gamePassLinkPatterns {
		match := pattern.FindStringSubmatch(ref)
		if len(match) != 2 {
			continue
		}
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		return id, nil
	}
	return 0, fmt.Errorf("roblox: invalid gamepass reference %q", ref)
}
