package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// cueTiming matches "00:01:02,500 --> 00:01:04,000" (SRT) and "01:02.500 --> 01:04.000" (WebVTT).
var cueTiming = regexp.MustCompile(`^\s*((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})\s*-->\s*((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})`)

// cueTag matches inline cue markup such as <v Speaker>, <i>, </b> or <00:01.000>.
var cueTag = regexp.MustCompile(`</?[^>]*>`)

// extractCaptions flattens SRT or WebVTT captions into one line of text per cue
// and returns the end time of the last cue in seconds.
func extractCaptions(content []byte) (string, float64, error) {
	lines := strings.Split(extractPlain(content), "\n")

	var (
		cues   []string
		cur    []string
		inCue  bool
		skip   bool
		maxEnd float64
	)
	flush := func() {
		if len(cur) > 0 {
			cues = append(cues, strings.Join(cur, " "))
		}
		cur = nil
		inCue = false
		skip = false
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if skip {
			continue
		}
		if i == 0 && strings.HasPrefix(trimmed, "WEBVTT") {
			skip = true
			continue
		}
		if !inCue && (strings.HasPrefix(trimmed, "NOTE") || trimmed == "STYLE" || trimmed == "REGION") {
			skip = true
			continue
		}
		if m := cueTiming.FindStringSubmatch(trimmed); m != nil {
			end, err := parseTimestamp(m[2])
			if err != nil {
				return "", 0, err
			}
			if end > maxEnd {
				maxEnd = end
			}
			cur = nil
			inCue = true
			continue
		}
		if !inCue {
			// Cue index or identifier line.
			continue
		}
		if text := strings.TrimSpace(cueTag.ReplaceAllString(trimmed, "")); text != "" {
			cur = append(cur, text)
		}
	}
	flush()
	return strings.Join(cues, "\n"), maxEnd, nil
}

// parseTimestamp converts [hh:]mm:ss(,|.)mmm into seconds.
func parseTimestamp(ts string) (float64, error) {
	ts = strings.Replace(ts, ",", ".", 1)
	parts := strings.Split(ts, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("parse caption timestamp %q: %w", ts, err)
		}
		total = total*60 + v
	}
	return total, nil
}
