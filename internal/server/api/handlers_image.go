package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/imagex"
)

const (
	multipartMemory = 32 << 20
	// room for multipart headers and small text fields
	multipartOverhead = 1 << 20
)

type upload struct {
	Name     string
	Data     []byte
	MimeType string
}

// parseMultipart bounds the body to limit bytes and parses the form.
func (a *API) parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

// readUpload reads one part and checks that it is an accepted image type.
func (a *API) readUpload(fh *multipart.FileHeader) (upload, error) {
	if fh.Size > a.maxUploadBytes {
		return upload{}, fmt.Errorf("%w: %s is too large", common.ErrorValidation, fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, fmt.Errorf("read upload: %w", err)
	}
	mt, err := imagex.DetectMime(data)
	if err != nil {
		return upload{}, err
	}
	return upload{Name: fh.Filename, Data: data, MimeType: mt}, nil
}

// formImage returns the single file under field, or ok=false when absent.
func (a *API) formImage(r *http.Request, field string) (upload, bool, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return upload{}, false, nil
	}
	u, err := a.readUpload(r.MultipartForm.File[field][0])
	return u, true, err
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", imagex.MimePNG)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// removeBackgroundWithKey is the programmatic endpoint behind an API key.
func (a *API) removeBackgroundWithKey(w http.ResponseWriter, r *http.Request) {
	_, err := a.requireAPIKey(r)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorUnauthorized):
		writeMessage(w, http.StatusUnauthorized, msgAPIKeyRequired)
		return
	case errors.Is(err, common.ErrorForbidden):
		writeMessage(w, http.StatusForbidden, msgInvalidAPIKey)
		return
	default:
		a.fail(w, r, err)
		return
	}

	a.processSingle(w, r, false)
}

// removeBackground is the browser path; it also accepts a background colour.
func (a *API) removeBackground(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.session(w, r); !ok {
		return
	}
	a.processSingle(w, r, true)
}

func (a *API) processSingle(w http.ResponseWriter, r *http.Request, withBackground bool) {
	if err := a.parseMultipart(w, r, a.maxUploadBytes+multipartOverhead); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeMessage(w, http.StatusBadRequest, msgImageRequired)
			return
		}
		a.fail(w, r, err)
		return
	}

	img, ok, err := a.formImage(r, "image")
	if !ok {
		writeMessage(w, http.StatusBadRequest, msgImageRequired)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.remover.RemoveBackground(r.Context(), img.Data, img.MimeType)
	if err != nil {
		a.log.Error(r.Context(), "background removal failed", "file", img.Name, "error", err)
		writeMessage(w, http.StatusInternalServerError, msgProcessingFailed)
		return
	}

	if withBackground {
		out, err = applyBackground(out, r.FormValue("background"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
	}

	writePNG(w, out)
}

// applyBackground fills transparent areas of a PNG with bg, if bg is a colour.
func applyBackground(data []byte, bg string) ([]byte, error) {
	c, fill, err := imagex.ParseBackground(bg)
	if err != nil || !fill {
		return data, err
	}
	img, err := imagex.Decode(data)
	if err != nil {
		return nil, err
	}
	return imagex.EncodePNG(imagex.FillBackground(img, c))
}
