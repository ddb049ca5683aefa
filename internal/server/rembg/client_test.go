package rembg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/imagex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.SetNRGBA(0, 0, color.NRGBA{A: 0})
	data, err := imagex.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func imageResponse(data []byte, key string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{
						map[string]any{"text": "here you go"},
						map[string]any{key: map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(data)}},
					},
				},
			},
		},
	}
}

func newTestClient(url string, opts ...Option) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: url, Model: "demo-model"}, opts...)
}

func TestRemoveBackground_Success(t *testing.T) {
	out := pngBytes(t, 3, 2)
	in := pngBytes(t, 4, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/demo-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, Instruction, req.Contents[0].Parts[0].Text)
		assert.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, base64.StdEncoding.EncodeToString(in), req.Contents[0].Parts[1].InlineData.Data)
		assert.Contains(t, req.GenerationConfig.ResponseModalities, "IMAGE")

		_ = json.NewEncoder(w).Encode(imageResponse(out, "inlineData"))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).RemoveBackground(context.Background(), in, "image/png")
	require.NoError(t, err)

	mt, err := imagex.DetectMime(got)
	require.NoError(t, err)
	assert.Equal(t, imagex.MimePNG, mt)

	img, err := imagex.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestRemoveBackground_SnakeCaseInlineData(t *testing.T) {
	out := pngBytes(t, 2, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(imageResponse(out, "inline_data"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RemoveBackground(context.Background(), pngBytes(t, 2, 2), "image/png")
	require.NoError(t, err)
}

func TestRemoveBackground_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"service error", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, "API key not valid"},
		{"plain 500", http.StatusInternalServerError, `oops`, "http 500"},
		{"not json", http.StatusOK, `<html>`, "decode"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, "no candidates"},
		{"text only", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`, "no image part"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"bad base64", http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"!!!"}}]}}]}`, "bad image data"},
		{"empty data", http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":""}}]}}]}`, "empty image data"},
		{"not an image", http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"aGVsbG8="}}]}}]}`, "decode image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).RemoveBackground(context.Background(), pngBytes(t, 2, 2), "image/png")
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrorUpstream)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRemoveBackground_StatusErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RemoveBackground(context.Background(), pngBytes(t, 2, 2), "image/png")

	var se *httpStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", se.Status)
}

func TestRemoveBackground_SingleAttempt(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RemoveBackground(context.Background(), pngBytes(t, 2, 2), "image/png")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRemoveBackground_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).RemoveBackground(context.Background(), pngBytes(t, 2, 2), "image/png")
	assert.ErrorIs(t, err, common.ErrorUpstream)
}

func TestRemoveBackground_MissingKey(t *testing.T) {
	c := NewClient(Config{Model: "m"})
	_, err := c.RemoveBackground(context.Background(), pngBytes(t, 2, 2), "image/png")
	assert.ErrorIs(t, err, common.ErrorUpstream)
}

func TestRemoveBackground_DownscalesLargeInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := base64.StdEncoding.DecodeString(req.Contents[0].Parts[1].InlineData.Data)
		require.NoError(t, err)
		img, err := imagex.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
		assert.Equal(t, 4, img.Bounds().Dy())

		_ = json.NewEncoder(w).Encode(imageResponse(raw, "inlineData"))
	}))
	defer server.Close()

	c := newTestClient(server.URL, WithMaxInputDimension(8))
	_, err := c.RemoveBackground(context.Background(), pngBytes(t, 32, 16), "image/png")
	require.NoError(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: " k ", Model: "m"}, WithHTTPClient(nil))
	assert.Equal(t, "k", c.cfg.APIKey)
	assert.Equal(t, defaultBaseURL, c.cfg.BaseURL)
	assert.NotNil(t, c.httpClient)
	assert.Zero(t, c.httpClient.Timeout)

	ep, err := c.endpoint()
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL+"/models/m:generateContent", ep)
}
