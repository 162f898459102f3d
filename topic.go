package mqtt311

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidTopicFilter is returned by ValidateTopicFilter.
var ErrInvalidTopicFilter = errors.New("invalid topic filter")

const (
	topicSeparator      = '/'
	singleLevelWildcard = '+'
	multiLevelWildcard  = '#'
)

// ValidateTopicFilter checks the wildcard rules of MQTT 3.1.1 section 4.7.1:
// '+' occupies a whole level, '#' occupies the last level. SUBSCRIBE
// encoding does not call it; the broker has the final word on filters.
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return ErrEmptyTopicFilter
	}

	if len(filter) > maxUint16 {
		return ErrStringTooLong
	}

	if !utf8.ValidString(filter) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidTopicFilter)
	}

	if strings.IndexByte(filter, 0) >= 0 {
		return fmt.Errorf("%w: contains a null character", ErrInvalidTopicFilter)
	}

	levels := strings.Split(filter, string(topicSeparator))
	for i, level := range levels {
		if strings.ContainsRune(level, singleLevelWildcard) && level != string(singleLevelWildcard) {
			return fmt.Errorf("%w: %q: '+' must occupy a whole level", ErrInvalidTopicFilter, filter)
		}

		if strings.ContainsRune(level, multiLevelWildcard) {
			if level != string(multiLevelWildcard) || i != len(levels)-1 {
				return fmt.Errorf("%w: %q: '#' must be the last level", ErrInvalidTopicFilter, filter)
			}
		}
	}

	return nil
}

// TopicMatch reports whether a topic name matches a topic filter.
// Topics starting with '$' are not matched by a leading wildcard.
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}

	if topic[0] == '$' && (filter[0] == singleLevelWildcard || filter[0] == multiLevelWildcard) {
		return false
	}

	fi, ti := 0, 0
	flen, tlen := len(filter), len(topic)

	// Indexes step past the separator after every level, so a value
	// beyond the length means the string is exhausted.
	for fi <= flen {
		fstart := fi
		for fi < flen && filter[fi] != topicSeparator {
			fi++
		}
		flevel := filter[fstart:fi]

		// "sport/#" also matches "sport"
		if flevel == string(multiLevelWildcard) {
			return true
		}

		if ti > tlen {
			return false
		}

		tstart := ti
		for ti < tlen && topic[ti] != topicSeparator {
			ti++
		}

		if flevel != string(singleLevelWildcard) && flevel != topic[tstart:ti] {
			return false
		}

		fi++
		ti++
	}

	return ti > tlen
}
