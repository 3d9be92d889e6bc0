package extract

import (
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

const mslSample = `[
  {
    "id": 424905,
    "sol": 1000,
    "camera": {"name": "MAST", "full_name": "Mast Camera"},
    "img_src": "https://y/01000/mast1.jpg",
    "earth_date": "2015-05-30",
    "width": 1536, "height": 1152,
    "site": 48, "drive": 1570
  },
  {
    "id": "424906",
    "sol": 1000,
    "camera": "FHAZ",
    "img_src": "https://y/01000/fhaz1.jpg"
  },
  {
    "id": 424907,
    "sol": 1000,
    "camera": {"name": "NAVCAM"},
    "img_src": "https://y/01000/nav1-thm.jpg"
  }
]`

func TestExtractMSL(t *testing.T) {
	records, err := ExtractMSL([]byte(mslSample), Options{SourceID: "curiosity", Unit: 1000, MinQuality: "full"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The -thm navcam item is a thumbnail and filtered out.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	got := byKey(t, records)

	mast, ok := got["424905"]
	if !ok {
		t.Fatal("mast record missing")
	}
	if mast.CategoryCode != "MAST" {
		t.Errorf("object-encoded camera: expected MAST, got %q", mast.CategoryCode)
	}
	if mast.Core.Width == nil || *mast.Core.Width != 1536 {
		t.Errorf("explicit width: expected 1536, got %v", mast.Core.Width)
	}
	if mast.CapturedAt.IsZero() {
		t.Error("earth_date should parse into captured_at")
	}

	fhaz, ok := got["424906"]
	if !ok {
		t.Fatal("fhaz record missing")
	}
	if fhaz.CategoryCode != "FHAZ" {
		t.Errorf("string-encoded camera: expected FHAZ, got %q", fhaz.CategoryCode)
	}
	// No explicit dimensions: the camera default table fills them in.
	if fhaz.Core.Width == nil || *fhaz.Core.Width != 1024 || fhaz.Core.Height == nil || *fhaz.Core.Height != 1024 {
		t.Errorf("default dimensions: expected 1024x1024, got %v x %v", fhaz.Core.Width, fhaz.Core.Height)
	}
}

func TestExtractMSLEnvelopeVariant(t *testing.T) {
	payload := `{"photos": [{"id": 1, "sol": 10, "camera": {"name": "CHEMCAM"}, "img_src": "https://y/c.jpg"}]}`
	records, err := ExtractMSL([]byte(payload), Options{SourceID: "curiosity", Unit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].CategoryCode != "CHEMCAM" {
		t.Errorf("expected one chemcam record, got %+v", records)
	}
}

func TestExtractMSLUnknownCameraNoDefaults(t *testing.T) {
	payload := `[{"id": 2, "sol": 10, "camera": "XCAM", "img_src": "https://y/x.jpg"}]`
	records, err := ExtractMSL([]byte(payload), Options{SourceID: "curiosity", Unit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CategoryCode != "XCAM" {
		t.Errorf("expected XCAM, got %q", records[0].CategoryCode)
	}
	if records[0].Core.Width != nil {
		t.Errorf("unknown camera must get no default dimensions, got %v", *records[0].Core.Width)
	}
}

func TestExtractMSLMalformedPayload(t *testing.T) {
	_, err := ExtractMSL([]byte(`{"photos": 17}`), Options{SourceID: "curiosity"})
	if !errors.Is(err, apperrors.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExtractMSLSkipsItemWithoutID(t *testing.T) {
	payload := `[{"sol": 10, "camera": "FHAZ"}, {"id": 3, "sol": 10, "camera": "FHAZ"}]`
	records, err := ExtractMSL([]byte(payload), Options{SourceID: "curiosity", Unit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].NaturalKey != "3" {
		t.Errorf("expected only the identified item, got %+v", records)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("m20"); err != nil {
		t.Errorf("m20 should be registered: %v", err)
	}
	if _, err := r.Lookup("msl"); err != nil {
		t.Errorf("msl should be registered: %v", err)
	}
	if _, err := r.Lookup("viking"); err == nil {
		t.Error("unknown schema should fail lookup")
	}
}
