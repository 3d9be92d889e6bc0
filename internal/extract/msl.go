package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

type mslItem struct {
	ID         flexString      `json:"id"`
	Sol        flexInt         `json:"sol"`
	Camera     json.RawMessage `json:"camera"`
	ImgSrc     string          `json:"img_src"`
	ThumbSrc   string          `json:"thumb_src"`
	DateTaken  string          `json:"date_taken"`
	EarthDate  string          `json:"earth_date"`
	Width      flexInt         `json:"width"`
	Height     flexInt         `json:"height"`
	Site       flexInt         `json:"site"`
	Drive      flexInt         `json:"drive"`
	SampleType string          `json:"sample_type"`
}

// mslDefaultDims maps camera codes to their sensor's full-frame dimensions,
// used when the item carries no explicit width/height. Codes absent from
// the table simply get no dimensions.
var mslDefaultDims = map[string][2]int{
	"FHAZ":    {1024, 1024},
	"RHAZ":    {1024, 1024},
	"NAVCAM":  {1024, 1024},
	"MAST":    {1648, 1200},
	"CHEMCAM": {1024, 1024},
	"MAHLI":   {1632, 1200},
	"MARDI":   {1648, 1200},
}

// ExtractMSL parses the flat array-of-items wire format used by the older
// rover generation. The camera field is inconsistently encoded: some
// archive vintages send an object, others a bare string code.
func ExtractMSL(raw []byte, opts Options) ([]model.CandidateRecord, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// Some mirror deployments wrap the array in a "photos" key.
		var envelope struct {
			Photos []json.RawMessage `json:"photos"`
		}
		if err2 := json.Unmarshal(raw, &envelope); err2 != nil || envelope.Photos == nil {
			return nil, fmt.Errorf("%w: msl payload: %v", apperrors.ErrParse, err)
		}
		items = envelope.Photos
	}
	logger := slog.Default().With("component", "extractor", "schema", "msl", "source", opts.SourceID)

	records := make([]model.CandidateRecord, 0, len(items))
	for _, rawItem := range items {
		var item mslItem
		if err := json.Unmarshal(rawItem, &item); err != nil {
			logger.Warn("skipping unreadable item", "unit", opts.Unit, "error", err)
			continue
		}
		if item.ID == "" {
			logger.Warn("skipping item without id", "unit", opts.Unit)
			continue
		}
		quality := item.SampleType
		if quality == "" && strings.Contains(item.ImgSrc, "-thm") {
			quality = "thumbnail"
		}
		if !meetsQuality(quality, opts.MinQuality) {
			continue
		}

		unit := opts.Unit
		if item.Sol.Set {
			unit = item.Sol.Value
		}
		capturedAt := parseTime(item.DateTaken)
		if capturedAt.IsZero() {
			capturedAt = parseTime(item.EarthDate)
		}

		code := mslCameraCode(item.Camera)
		core := model.CoreFields{
			Site:         item.Site.ptr(),
			Drive:        item.Drive.ptr(),
			ImageURL:     item.ImgSrc,
			ThumbnailURL: item.ThumbSrc,
		}
		if item.Width.Set && item.Height.Set {
			core.Width, core.Height = item.Width.ptr(), item.Height.ptr()
		} else if dims, ok := mslDefaultDims[code]; ok {
			w, h := dims[0], dims[1]
			core.Width, core.Height = &w, &h
		}

		records = append(records, model.CandidateRecord{
			NaturalKey:   string(item.ID),
			Unit:         unit,
			CapturedAt:   capturedAt,
			CategoryCode: code,
			Core:         core,
			Raw:          compactRaw(rawItem),
		})
	}
	return records, nil
}

// mslCameraCode reads the camera field in either of its encodings:
// {"name":"FHAZ",...} or "FHAZ".
func mslCameraCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
