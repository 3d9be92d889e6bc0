package extract

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

func byKey(t *testing.T, records []model.CandidateRecord) map[string]model.CandidateRecord {
	t.Helper()
	m := make(map[string]model.CandidateRecord, len(records))
	for _, r := range records {
		m[r.NaturalKey] = r
	}
	return m
}

const m20Sample = `{
  "images": [
    {
      "imageid": "NLF_1000_0714402503_123ECM",
      "sol": 1000,
      "date_taken_utc": "2023-11-22T08:15:42Z",
      "sample_type": "Full",
      "site": 42,
      "drive": 1234,
      "camera": {"instrument": "NAVCAM_LEFT", "mast_az": "152.73", "mast_el": "-18.2"},
      "extended": {"subframe_rect": "(1,1,1288,968)"},
      "image_files": {"small": "https://x/th.png", "full_res": "https://x/full.png"}
    },
    {
      "imageid": "NLF_1000_0714402504_124ECM",
      "sol": 1000,
      "sample_type": "Thumbnail",
      "camera": {"instrument": "NAVCAM_LEFT"},
      "image_files": {"small": "https://x/th2.png"}
    },
    {
      "imageid": "ZR0_1000_0714402888_000EBY",
      "sol": 1000,
      "sample_type": "Full",
      "camera": {"instrument": "MCZ_RIGHT"},
      "extended": {"dimension": "(1648,1200)"}
    }
  ]
}`

func TestExtractM20(t *testing.T) {
	records, err := ExtractM20([]byte(m20Sample), Options{SourceID: "perseverance", Unit: 1000, MinQuality: "full"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (thumbnail filtered), got %d", len(records))
	}
	got := byKey(t, records)

	nav, ok := got["NLF_1000_0714402503_123ECM"]
	if !ok {
		t.Fatal("navcam record missing")
	}
	if nav.Unit != 1000 {
		t.Errorf("unit: expected 1000, got %d", nav.Unit)
	}
	if nav.CategoryCode != "NAVCAM_LEFT" {
		t.Errorf("category: expected NAVCAM_LEFT, got %q", nav.CategoryCode)
	}
	if nav.CapturedAt.IsZero() {
		t.Error("captured_at should be parsed")
	}
	if nav.Core.Site == nil || *nav.Core.Site != 42 {
		t.Errorf("site: expected 42, got %v", nav.Core.Site)
	}
	if nav.Core.MastAz == nil || *nav.Core.MastAz != 152.73 {
		t.Errorf("mast_az: expected 152.73, got %v", nav.Core.MastAz)
	}
	// Subframe rectangle "(1,1,1288,968)" carries the crop dimensions.
	if nav.Core.Width == nil || *nav.Core.Width != 1288 || nav.Core.Height == nil || *nav.Core.Height != 968 {
		t.Errorf("dimensions: expected 1288x968, got %v x %v", nav.Core.Width, nav.Core.Height)
	}
	if nav.Core.ImageURL != "https://x/full.png" {
		t.Errorf("image url: got %q", nav.Core.ImageURL)
	}
	if len(nav.Raw) == 0 {
		t.Error("raw payload must be retained verbatim")
	}

	mcz, ok := got["ZR0_1000_0714402888_000EBY"]
	if !ok {
		t.Fatal("mastcam record missing")
	}
	// Plain "(w,h)" dimension pair.
	if mcz.Core.Width == nil || *mcz.Core.Width != 1648 {
		t.Errorf("dimension pair: expected width 1648, got %v", mcz.Core.Width)
	}
	// Absent timestamp becomes a zero time, never an error.
	if !mcz.CapturedAt.IsZero() {
		t.Error("missing date_taken_utc should yield zero time")
	}
}

func TestExtractM20KeepsThumbnailsWithoutThreshold(t *testing.T) {
	records, err := ExtractM20([]byte(m20Sample), Options{SourceID: "perseverance", Unit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records with no quality threshold, got %d", len(records))
	}
}

func TestExtractM20SkipsItemsWithoutID(t *testing.T) {
	payload := `{"images": [{"sol": 5, "camera": {"instrument": "SKYCAM"}}, {"imageid": "ok-1", "sol": 5, "camera": {"instrument": "SKYCAM"}}]}`
	records, err := ExtractM20([]byte(payload), Options{SourceID: "perseverance", Unit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].NaturalKey != "ok-1" {
		t.Errorf("expected only the identified item, got %+v", records)
	}
}

func TestExtractM20MalformedPayload(t *testing.T) {
	_, err := ExtractM20([]byte(`not json at all`), Options{SourceID: "perseverance"})
	if !errors.Is(err, apperrors.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExtractM20AlternateTypedFields(t *testing.T) {
	// sol as string, site as float, drive as null: all tolerated.
	payload := `{"images": [{"imageid": "x-1", "sol": "77", "site": 12.0, "drive": null, "camera": {"instrument": "NAVCAM_LEFT"}}]}`
	records, err := ExtractM20([]byte(payload), Options{SourceID: "perseverance", Unit: 70})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Unit != 77 {
		t.Errorf("string-typed sol: expected 77, got %d", r.Unit)
	}
	if r.Core.Site == nil || *r.Core.Site != 12 {
		t.Errorf("float-typed site: expected 12, got %v", r.Core.Site)
	}
	if r.Core.Drive != nil {
		t.Errorf("null drive: expected absent, got %v", *r.Core.Drive)
	}
}
