// SPDX-License-Identifier: MIT

package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

// ErrNoVariants is returned when a playlist contains no stream variants,
// e.g. a media playlist was supplied where a master playlist was expected.
var ErrNoVariants = errors.New("no variants in manifest")

type streamInfo struct {
	height      int
	bitrateKbps int
	codecs      string
	name        string
}

// ParseMaster parses a master playlist and returns its variant table.
// Variants are numbered in order of appearance; duplicate renditions are
// kept. The #EXTM3U header is not required, matching lenient real-world
// players. Unknown tags are skipped.
func ParseMaster(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)

	var (
		variants []Variant
		pending  *streamInfo
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			info, err := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			if err != nil {
				return nil, err
			}
			pending = info
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		// URI line. Only one directly following a stream tag names a
		// variant; stray URIs (media playlist segments) are ignored.
		if pending != nil {
			variants = append(variants, Variant{
				Index:       len(variants),
				Height:      pending.height,
				BitrateKbps: pending.bitrateKbps,
				Codecs:      pending.codecs,
				Name:        pending.name,
				URI:         line,
			})
			pending = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(variants) == 0 {
		return nil, ErrNoVariants
	}

	return NewTable(variants), nil
}

func parseStreamInf(attrList string) (*streamInfo, error) {
	attrs := parseAttributes(attrList)
	info := &streamInfo{}

	if bw, ok := attrs["BANDWIDTH"]; ok {
		n, err := strconv.Atoi(bw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid BANDWIDTH: %s", bw)
		}
		info.bitrateKbps = n / 1000
	}

	if res, ok := attrs["RESOLUTION"]; ok {
		h, err := parseResolutionHeight(res)
		if err != nil {
			return nil, err
		}
		info.height = h
	}

	info.codecs = attrs["CODECS"]
	info.name = unorm.NFC.String(attrs["NAME"])

	return info, nil
}

// parseAttributes splits an attribute list such as
//
//	BANDWIDTH=2400000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
//
// into a key/value map. Quoted values may contain commas.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)

	for len(s) > 0 {
		eq := strings.Index(s, "=")
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		rest := s[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				// Unterminated quote: take the remainder.
				value = rest[1:]
				rest = ""
			} else {
				value = rest[1 : 1+end]
				rest = strings.TrimPrefix(rest[end+2:], ",")
			}
		} else {
			if comma := strings.Index(rest, ","); comma >= 0 {
				value = strings.TrimSpace(rest[:comma])
				rest = rest[comma+1:]
			} else {
				value = strings.TrimSpace(rest)
				rest = ""
			}
		}

		if key != "" {
			attrs[key] = value
		}
		s = rest
	}

	return attrs
}

// parseResolutionHeight extracts the vertical resolution from a WxH pair.
func parseResolutionHeight(res string) (int, error) {
	_, hs, ok := strings.Cut(res, "x")
	if !ok {
		return 0, fmt.Errorf("invalid RESOLUTION: %s", res)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("invalid RESOLUTION: %s", res)
	}
	return h, nil
}
