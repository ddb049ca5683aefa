package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/bulk"
	"github.com/go-chi/chi/v5"
)

type exportResponse struct {
	URL string `json:"url"`
}

func (a *API) submitBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := a.session(w, r)
	if !ok {
		return
	}

	limit := a.maxUploadBytes*int64(a.maxBatchItems) + multipartOverhead
	if err := a.parseMultipart(w, r, limit); err != nil {
		a.fail(w, r, err)
		return
	}

	files := r.MultipartForm.File["images"]
	uploads := make([]bulk.Upload, 0, len(files))
	for _, fh := range files {
		u, err := a.readUpload(fh)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		uploads = append(uploads, bulk.Upload{Name: u.Name, Data: u.Data, MimeType: u.MimeType})
	}

	b, err := a.batches.Submit(id.UserID, uploads)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log.Info(r.Context(), "batch submitted", "batch", b.ID, "items", b.Len(), "user", id.UserID)
	writeJSON(w, http.StatusAccepted, b.Snapshot())
}

// batch resolves the {id} path parameter for the session's owner.
func (a *API) batch(w http.ResponseWriter, r *http.Request) (*bulk.Batch, bool) {
	id, ok := a.session(w, r)
	if !ok {
		return nil, false
	}
	b, err := a.batches.Get(id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return b, true
}

func (a *API) getBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := a.batch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

func (a *API) clearBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := a.batches.Clear(id.UserID, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// batchEvents streams transitions as server-sent events. The first event
// is the current snapshot; the stream ends once the batch is ready.
func (a *API) batchEvents(w http.ResponseWriter, r *http.Request) {
	b, ok := a.batch(w, r)
	if !ok {
		return
	}

	events, cancel := b.Subscribe()
	defer cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snap := b.Snapshot()
	if err := writeEvent(w, rc, "snapshot", snap); err != nil || snap.Ready {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, rc, "status", ev); err != nil {
				return
			}
			if ev.Snapshot.Ready {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return rc.Flush()
}

func (a *API) batchItem(w http.ResponseWriter, r *http.Request) {
	b, ok := a.batch(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.fail(w, r, common.ErrorNotFound)
		return
	}
	data, name, err := b.Result(index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	writePNG(w, data)
}

func (a *API) batchArchive(w http.ResponseWriter, r *http.Request) {
	b, ok := a.batch(w, r)
	if !ok {
		return
	}
	data, err := b.DownloadAll()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bulk.ArchiveName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) exportBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := a.batch(w, r)
	if !ok {
		return
	}
	if a.exporter == nil || !a.exporter.Enabled() {
		a.fail(w, r, common.ErrorNotConfigured)
		return
	}
	data, err := b.DownloadAll()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	url, err := a.exporter.Export(r.Context(), b.Owner, data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{URL: url})
}
