package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cutout/internal/client/client"
	"github.com/dmitrijs2005/cutout/internal/filex"
)

// ResultPrefix is prepended to the base name of every written result.
const ResultPrefix = "bg_removed_"

// RemoveService sends local images to the API-key endpoint and writes the
// transparent PNGs next to each other in an output folder.
type RemoveService interface {
	Remove(ctx context.Context, apiKey, path, outDir string) (string, error)
}

type removeService struct {
	client client.Client
}

func NewRemoveService(client client.Client) RemoveService {
	return &removeService{client: client}
}

// Remove processes the image at path and returns the written file. An empty
// outDir writes next to the source.
func (s *removeService) Remove(ctx context.Context, apiKey, path, outDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	name := filepath.Base(path)
	out, err := s.client.RemoveBackground(ctx, apiKey, name, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	dir, err := filex.EnsureDir(outDir)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, ResultName(name))
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// ResultName maps "photo.jpg" to "bg_removed_photo.png".
func ResultName(name string) string {
	return ResultPrefix + strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
}
