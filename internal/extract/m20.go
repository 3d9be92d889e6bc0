package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

// m20Envelope is the nested item-collection wire format: the items live
// under an "images" key alongside pagination metadata we ignore.
type m20Envelope struct {
	Images []json.RawMessage `json:"images"`
}

type m20Item struct {
	ImageID      flexString `json:"imageid"`
	Sol          flexInt    `json:"sol"`
	DateTakenUTC string     `json:"date_taken_utc"`
	SampleType   string     `json:"sample_type"`
	Site         flexInt    `json:"site"`
	Drive        flexInt    `json:"drive"`
	Camera       struct {
		Instrument string    `json:"instrument"`
		MastAz     flexFloat `json:"mast_az"`
		MastEl     flexFloat `json:"mast_el"`
	} `json:"camera"`
	Extended struct {
		Dimension    string `json:"dimension"`
		SubframeRect string `json:"subframe_rect"`
	} `json:"extended"`
	ImageFiles struct {
		Small   string `json:"small"`
		Medium  string `json:"medium"`
		Large   string `json:"large"`
		FullRes string `json:"full_res"`
	} `json:"image_files"`
}

// ExtractM20 parses the nested raw-image feed used by the newer rover
// generation. Dimensions arrive either as a "(w,h)" pair or as a
// "(x,y,w,h)" subframe rectangle depending on the camera's downlink path.
func ExtractM20(raw []byte, opts Options) ([]model.CandidateRecord, error) {
	var envelope m20Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: m20 payload: %v", apperrors.ErrParse, err)
	}
	logger := slog.Default().With("component", "extractor", "schema", "m20", "source", opts.SourceID)

	records := make([]model.CandidateRecord, 0, len(envelope.Images))
	for _, rawItem := range envelope.Images {
		var item m20Item
		if err := json.Unmarshal(rawItem, &item); err != nil {
			logger.Warn("skipping unreadable item", "unit", opts.Unit, "error", err)
			continue
		}
		if item.ImageID == "" {
			logger.Warn("skipping item without image id", "unit", opts.Unit)
			continue
		}
		if !meetsQuality(item.SampleType, opts.MinQuality) {
			continue
		}

		unit := opts.Unit
		if item.Sol.Set {
			unit = item.Sol.Value
		}

		core := model.CoreFields{
			Site:         item.Site.ptr(),
			Drive:        item.Drive.ptr(),
			MastAz:       item.Camera.MastAz.ptr(),
			MastEl:       item.Camera.MastEl.ptr(),
			ImageURL:     item.ImageFiles.FullRes,
			ThumbnailURL: item.ImageFiles.Small,
		}
		if core.ImageURL == "" {
			core.ImageURL = item.ImageFiles.Large
		}
		if w, h, ok := m20Dimensions(item); ok {
			core.Width, core.Height = &w, &h
		}

		records = append(records, model.CandidateRecord{
			NaturalKey:   string(item.ImageID),
			Unit:         unit,
			CapturedAt:   parseTime(item.DateTakenUTC),
			CategoryCode: item.Camera.Instrument,
			Core:         core,
			Raw:          compactRaw(rawItem),
		})
	}
	return records, nil
}

// m20Dimensions normalizes the two dimension encodings. A subframe
// rectangle "(x,y,w,h)" wins over the plain "(w,h)" pair because it
// reflects the actual downlinked crop.
func m20Dimensions(item m20Item) (w, h int, ok bool) {
	if rect := parseTuple(item.Extended.SubframeRect); len(rect) == 4 {
		return rect[2], rect[3], true
	}
	if dim := parseTuple(item.Extended.Dimension); len(dim) == 2 {
		return dim[0], dim[1], true
	}
	return 0, 0, false
}
