// SPDX-License-Identifier: MIT

package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type variantGolden struct {
	Index       int    `json:"index"`
	Height      int    `json:"height"`
	BitrateKbps int    `json:"bitrateKbps"`
	Codecs      string `json:"codecs"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Label       string `json:"label"`
}

func TestParseMaster_Goldens(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "fixtures")
	goldenDir := filepath.Join("testdata", "golden")
	updateGoldens := os.Getenv("UPDATE_GOLDEN") == "1"

	tests := []struct {
		name          string
		fixture       string
		wantError     bool
		errorContains string
	}{
		{
			name:    "Three_Variants",
			fixture: "master_three_variants.m3u8",
		},
		{
			name:    "Audio_Only_No_Resolution",
			fixture: "master_audio_only.m3u8",
		},
		{
			name:    "Duplicate_Renditions_Kept",
			fixture: "master_duplicate_renditions.m3u8",
		},
		{
			name:          "Media_Playlist_Rejected",
			fixture:       "media_playlist.m3u8",
			wantError:     true,
			errorContains: "no variants",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(fixtureDir, tt.fixture)
			content, err := os.ReadFile(path)
			require.NoError(t, err)

			table, err := ParseMaster(strings.NewReader(string(content)))
			if tt.wantError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				return
			}

			require.NoError(t, err)

			actual := make([]variantGolden, 0, table.Len())
			for _, v := range table.Variants() {
				actual = append(actual, variantGolden{
					Index:       v.Index,
					Height:      v.Height,
					BitrateKbps: v.BitrateKbps,
					Codecs:      v.Codecs,
					Name:        v.Name,
					URI:         v.URI,
					Label:       v.Label(),
				})
			}

			base := strings.TrimSuffix(tt.fixture, filepath.Ext(tt.fixture))
			goldenPath := filepath.Join(goldenDir, base+".variants.json")

			if updateGoldens {
				require.NoError(t, os.MkdirAll(goldenDir, 0o755))
				blob, err := json.MarshalIndent(actual, "", "  ")
				require.NoError(t, err)
				blob = append(blob, '\n')
				require.NoError(t, os.WriteFile(goldenPath, blob, 0o644))
				return
			}

			expectedBytes, err := os.ReadFile(goldenPath)
			require.NoError(t, err, "missing golden file; set UPDATE_GOLDEN=1 to generate")

			var expected []variantGolden
			require.NoError(t, json.Unmarshal(expectedBytes, &expected))

			if diff := cmp.Diff(expected, actual); diff != "" {
				t.Fatalf("golden mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
