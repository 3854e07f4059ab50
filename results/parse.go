// Package results holds the pure pieces of result processing: parsing raw
// final-time strings, ranking the participants of one match, and resolving
// which team a series source feeds into a dependent slot.
package results

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mkalens/speedbracket/models"
)

// ErrInvalidFormat rejects any input that is neither HH:MM:SS nor DNF/DQ.
var ErrInvalidFormat = errors.New("invalid result format, expected HH:MM:SS or DNF/DQ")

var timePattern = regexp.MustCompile(`^(\d+):([0-5]\d):([0-5]\d)$`)

// ParseFinalTime parses one raw result entry. Hours are unbounded, minutes
// and seconds must be zero-padded and below 60. Exactly one of the returned
// values is set: a duration in seconds for a timed finish, a status for
// DNF/DQ.
func ParseFinalTime(raw string) (*int, *models.ResultStatus, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return nil, nil, ErrInvalidFormat
	}

	switch value {
	case string(models.StatusDNF):
		status := models.StatusDNF
		return nil, &status, nil
	case string(models.StatusDQ):
		status := models.StatusDQ
		return nil, &status, nil
	}

	groups := timePattern.FindStringSubmatch(value)
	if groups == nil {
		return nil, nil, ErrInvalidFormat
	}

	hours, _ := strconv.Atoi(groups[1])
	minutes, _ := strconv.Atoi(groups[2])
	seconds, _ := strconv.Atoi(groups[3])

	total := hours*3600 + minutes*60 + seconds
	return &total, nil, nil
}

// FormatFinalTime renders seconds back to the canonical HH:MM:SS form.
func FormatFinalTime(totalSeconds int) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
