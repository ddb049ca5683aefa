package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/imagex"
	"github.com/dmitrijs2005/cutout/internal/server/maskeditor"
)

// applyEdits replays client-captured strokes over the processed image and
// returns the flattened result with transparency.
func (a *API) applyEdits(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.session(w, r); !ok {
		return
	}
	if err := a.parseMultipart(w, r, 2*a.maxUploadBytes+multipartOverhead); err != nil {
		a.fail(w, r, err)
		return
	}

	original, ok, err := a.formImage(r, "original")
	if err == nil && !ok {
		err = fmt.Errorf("%w: original image is required", common.ErrorValidation)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	processed, ok, err := a.formImage(r, "processed")
	if err == nil && !ok {
		err = fmt.Errorf("%w: processed image is required", common.ErrorValidation)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var strokes []maskeditor.Stroke
	if raw := r.FormValue("strokes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &strokes); err != nil {
			a.fail(w, r, fmt.Errorf("%w: bad strokes: %v", common.ErrorValidation, err))
			return
		}
	}

	width := 0
	if raw := r.FormValue("width"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil {
			a.fail(w, r, fmt.Errorf("%w: bad width", common.ErrorValidation))
			return
		}
	}

	base, err := imagex.Decode(original.Data)
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}
	top, err := imagex.Decode(processed.Data)
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	s, err := maskeditor.NewSession(base, top, width)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := s.Replay(strokes); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := s.Apply()
	if err != nil {
		a.fail(w, r, err)
		return
	}

	data, err := imagex.EncodePNG(out)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writePNG(w, data)
}
