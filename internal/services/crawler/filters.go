package crawler

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// linkFilter applies follow/ignore regex patterns to discovered URLs.
// Ignore patterns reject first; follow patterns, when present, act as an
// allow-list. Invalid patterns are logged and skipped rather than failing
// the whole crawl.
type linkFilter struct {
	followRegexes []*regexp.Regexp
	ignoreRegexes []*regexp.Regexp
}

func newLinkFilter(followPatterns, ignorePatterns []string, logger arbor.ILogger) *linkFilter {
	filter := &linkFilter{
		followRegexes: make([]*regexp.Regexp, 0, len(followPatterns)),
		ignoreRegexes: make([]*regexp.Regexp, 0, len(ignorePatterns)),
	}

	for _, pattern := range followPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			filter.followRegexes = append(filter.followRegexes, re)
		} else {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("Failed to compile follow pattern")
		}
	}
	for _, pattern := range ignorePatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			filter.ignoreRegexes = append(filter.ignoreRegexes, re)
		} else {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("Failed to compile ignore pattern")
		}
	}

	return filter
}

// Allow reports whether the URL passes the configured patterns
func (f *linkFilter) Allow(url string) bool {
	for _, re := range f.ignoreRegexes {
		if re.MatchString(url) {
			return false
		}
	}

	if len(f.followRegexes) > 0 {
		for _, re := range f.followRegexes {
			if re.MatchString(url) {
				return true
			}
		}
		return false
	}

	return true
}
