// SPDX-License-Identifier: MIT

package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoSegments is returned when a media playlist declares no segments,
// e.g. a master playlist was supplied where a media playlist was expected.
var ErrNoSegments = errors.New("no segments in media playlist")

// MediaInfo is the timeline summary of one media playlist.
type MediaInfo struct {
	// TargetDuration is the declared #EXT-X-TARGETDURATION in seconds,
	// 0 when the playlist omits it.
	TargetDuration float64
	// TotalDuration is the sum of all segment durations in seconds.
	TotalDuration float64
	// SegmentCount is the number of declared segments.
	SegmentCount int
	// Ended reports a bounded timeline: #EXT-X-ENDLIST or
	// #EXT-X-PLAYLIST-TYPE:VOD. A playlist without either is a live
	// window that keeps growing.
	Ended bool
}

// ParseMedia parses a media playlist and sums its segment timeline.
// Only one EXTINF applies per URI line; stray URIs without a preceding
// EXTINF count as zero-length segments. Unknown tags are skipped.
func ParseMedia(r io.Reader) (*MediaInfo, error) {
	scanner := bufio.NewScanner(r)

	info := &MediaInfo{}
	var nextDuration float64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			raw := strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("invalid TARGETDURATION: %s", raw)
			}
			info.TargetDuration = secs
			continue

		case strings.HasPrefix(line, "#EXTINF:"):
			raw := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(raw, ","); idx >= 0 {
				raw = raw[:idx]
			}
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("invalid EXTINF duration: %s", raw)
			}
			nextDuration = secs
			continue

		case line == "#EXT-X-ENDLIST":
			info.Ended = true
			continue

		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			if strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:") == "VOD" {
				info.Ended = true
			}
			continue

		case strings.HasPrefix(line, "#"):
			continue
		}

		// URI line closes one segment.
		info.SegmentCount++
		info.TotalDuration += nextDuration
		nextDuration = 0
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if info.SegmentCount == 0 {
		return nil, ErrNoSegments
	}

	return info, nil
}
