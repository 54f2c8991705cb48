// SPDX-License-Identifier: MIT

package manifest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMaster_ThreeVariants(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.42c01e,mp4a.40.2",NAME="360p"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2",NAME="720p"
mid/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,CODECS="avc1.640028,mp4a.40.2",NAME="1080p"
high/index.m3u8`

	table, err := ParseMaster(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("Expected 3 variants, got %d", table.Len())
	}

	v, ok := table.At(1)
	if !ok {
		t.Fatal("Expected variant at index 1")
	}
	if v.Index != 1 {
		t.Errorf("Expected Index=1, got %d", v.Index)
	}
	if v.Height != 720 {
		t.Errorf("Expected Height=720, got %d", v.Height)
	}
	if v.BitrateKbps != 2400 {
		t.Errorf("Expected BitrateKbps=2400, got %d", v.BitrateKbps)
	}
	if v.Codecs != "avc1.64001f,mp4a.40.2" {
		t.Errorf("Unexpected Codecs: %q", v.Codecs)
	}
	if v.Name != "720p" {
		t.Errorf("Expected Name=720p, got %q", v.Name)
	}
	if v.URI != "mid/index.m3u8" {
		t.Errorf("Expected URI=mid/index.m3u8, got %q", v.URI)
	}
}

func TestParseMaster_OrderPreserved(t *testing.T) {
	// Bitrates deliberately out of order; the table must not sort.
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080
high/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8`

	table, err := ParseMaster(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	first, _ := table.At(0)
	second, _ := table.At(1)
	if first.Height != 1080 || second.Height != 360 {
		t.Errorf("Manifest order not preserved: got heights %d, %d", first.Height, second.Height)
	}
}

func TestParseMaster_DuplicatesKept(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
a/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
b/index.m3u8`

	table, err := ParseMaster(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Expected duplicates to be kept, got %d variants", table.Len())
	}
}

func TestParseMaster_MediaPlaylist_NoVariants(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
segment1.ts
#EXTINF:10.0,
segment2.ts
#EXT-X-ENDLIST`

	_, err := ParseMaster(strings.NewReader(playlist))
	if !errors.Is(err, ErrNoVariants) {
		t.Fatalf("Expected ErrNoVariants, got %v", err)
	}
}

func TestParseMaster_Empty_NoVariants(t *testing.T) {
	_, err := ParseMaster(strings.NewReader(""))
	if !errors.Is(err, ErrNoVariants) {
		t.Fatalf("Expected ErrNoVariants, got %v", err)
	}
}

func TestParseMaster_InvalidBandwidth(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=abc,RESOLUTION=640x360
low/index.m3u8`

	_, err := ParseMaster(strings.NewReader(playlist))
	if err == nil {
		t.Fatal("Expected error for invalid BANDWIDTH, got nil")
	}
	if !strings.Contains(err.Error(), "BANDWIDTH") {
		t.Errorf("Expected BANDWIDTH error, got: %v", err)
	}
}

func TestParseMaster_InvalidResolution(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=square
low/index.m3u8`

	_, err := ParseMaster(strings.NewReader(playlist))
	if err == nil {
		t.Fatal("Expected error for invalid RESOLUTION, got nil")
	}
	if !strings.Contains(err.Error(), "RESOLUTION") {
		t.Errorf("Expected RESOLUTION error, got: %v", err)
	}
}

func TestParseMaster_MissingResolution_LabelFallsBack(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=96000,CODECS="mp4a.40.2"
audio/index.m3u8`

	table, err := ParseMaster(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := table.At(0)
	if v.Height != 0 {
		t.Errorf("Expected Height=0, got %d", v.Height)
	}
	if got := v.Label(); got != "96 kbps" {
		t.Errorf("Expected label '96 kbps', got %q", got)
	}
}

func TestParseMaster_NameNormalized(t *testing.T) {
	// NAME with a decomposed u + combining diaeresis must come out composed.
	playlist := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,NAME=\"Qualität niedrig\"\n" +
		"low/index.m3u8\n"

	table, err := ParseMaster(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := table.At(0)
	if v.Name != "Qualität niedrig" {
		t.Errorf("Expected NFC-composed name, got %q", v.Name)
	}
}

func TestParseMaster_StreamInfWithoutURI_Ignored(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720
mid/index.m3u8`

	table, err := ParseMaster(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// The first tag is superseded by the second before any URI arrives.
	if table.Len() != 1 {
		t.Fatalf("Expected 1 variant, got %d", table.Len())
	}
	v, _ := table.At(0)
	if v.Height != 720 {
		t.Errorf("Expected the 720p variant, got height %d", v.Height)
	}
}

func TestParseAttributes_QuotedComma(t *testing.T) {
	attrs := parseAttributes(`BANDWIDTH=2400000,CODECS="avc1.64001f,mp4a.40.2",NAME="720p"`)

	if attrs["BANDWIDTH"] != "2400000" {
		t.Errorf("Unexpected BANDWIDTH: %q", attrs["BANDWIDTH"])
	}
	if attrs["CODECS"] != "avc1.64001f,mp4a.40.2" {
		t.Errorf("Quoted comma not preserved: %q", attrs["CODECS"])
	}
	if attrs["NAME"] != "720p" {
		t.Errorf("Unexpected NAME: %q", attrs["NAME"])
	}
}

func TestParseAttributes_UnterminatedQuote(t *testing.T) {
	attrs := parseAttributes(`NAME="broken`)
	if attrs["NAME"] != "broken" {
		t.Errorf("Expected remainder as value, got %q", attrs["NAME"])
	}
}

func TestTable_AtOutOfRange(t *testing.T) {
	table := NewTable([]Variant{{Index: 0, Height: 360}})

	if _, ok := table.At(-1); ok {
		t.Error("Expected At(-1) to report absence")
	}
	if _, ok := table.At(1); ok {
		t.Error("Expected At(1) to report absence")
	}

	var nilTable *Table
	if _, ok := nilTable.At(0); ok {
		t.Error("Expected At on nil table to report absence")
	}
	if nilTable.Len() != 0 {
		t.Error("Expected Len on nil table to be 0")
	}
}

func TestTable_ClampIndex(t *testing.T) {
	table := NewTable([]Variant{{Index: 0}, {Index: 1}, {Index: 2}})

	tests := []struct {
		in   int
		want int
	}{
		{-5, 0},
		{0, 0},
		{2, 2},
		{3, 2},
		{99, 2},
	}
	for _, tt := range tests {
		if got := table.ClampIndex(tt.in); got != tt.want {
			t.Errorf("ClampIndex(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}

	var empty *Table
	if got := empty.ClampIndex(0); got != -1 {
		t.Errorf("ClampIndex on empty table = %d, want -1", got)
	}
}

func TestTable_VariantsCopy(t *testing.T) {
	table := NewTable([]Variant{{Index: 0, Height: 360}})

	vs := table.Variants()
	vs[0].Height = 9999

	v, _ := table.At(0)
	if v.Height != 360 {
		t.Errorf("Table mutated through Variants() copy: height %d", v.Height)
	}
}

func TestVariant_Label(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		want    string
	}{
		{"height wins", Variant{Index: 0, Height: 720, BitrateKbps: 2400}, "720p"},
		{"bitrate fallback", Variant{Index: 1, BitrateKbps: 96}, "96 kbps"},
		{"index fallback", Variant{Index: 2}, "variant 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.variant.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}
