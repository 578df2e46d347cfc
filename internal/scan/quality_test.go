package scan

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/librarrarian/dashboard/internal/providers/sonarr"
)

func episodeFileFixture(id int64, quality string) sonarr.EpisodeFile {
	var f sonarr.EpisodeFile
	f.ID = id
	f.SeriesID = 7
	f.Path = "/tv/show/s01e01.mkv"
	f.QualityCutoffNotMet = true
	f.Quality.Quality.Name = quality
	return f
}

func TestQualityMismatchMeta_CarriesCurrentAndTargetQuality(t *testing.T) {
	profile := sonarr.QualityProfile{ID: 3, Name: "HD-1080p", Cutoff: 9}

	raw, err := qualityMismatchMeta(7, episodeFileFixture(42, "SDTV"), profile)
	if err != nil {
		t.Fatalf("qualityMismatchMeta() error = %v", err)
	}

	var got QualityMismatchMetadata
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}

	want := QualityMismatchMetadata{
		Source:         "sonarr",
		SeriesID:       7,
		EpisodeFileID:  42,
		CurrentQuality: "SDTV",
		TargetProfile:  "HD-1080p",
		TargetCutoff:   9,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestQualityMismatchMeta_UnknownProfileOmitsTargetFields(t *testing.T) {
	// A series referencing a profile id the profile list does not contain
	// resolves to the zero value; the target fields must be absent, not
	// fabricated as empty/zero claims about the profile.
	raw, err := qualityMismatchMeta(7, episodeFileFixture(42, "SDTV"), sonarr.QualityProfile{})
	if err != nil {
		t.Fatalf("qualityMismatchMeta() error = %v", err)
	}

	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if _, ok := keys["targetProfile"]; ok {
		t.Error("expected targetProfile to be omitted for an unknown profile")
	}
	if _, ok := keys["targetCutoff"]; ok {
		t.Error("expected targetCutoff to be omitted for an unknown profile")
	}
	if keys["currentQuality"] != "SDTV" {
		t.Errorf("currentQuality = %v, want SDTV", keys["currentQuality"])
	}
}
