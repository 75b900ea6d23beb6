package app

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"paginasamarelas/internal/errors"
	"paginasamarelas/internal/util"
	"paginasamarelas/pkg/covers"
)

// UploadResult describes a stored cover image.
type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	BlurHash string `json:"blurhash,omitempty"`
}

// MaxUploadBytes returns the effective cover size limit.
func (a *App) MaxUploadBytes() int64 {
	if a.maxUploadBytes <= 0 {
		return covers.DefaultMaxBytes
	}
	return a.maxUploadBytes
}

// UploadCover validates an image and stores it under a random name.
func (a *App) UploadCover(ctx context.Context, r io.Reader) (UploadResult, error) {
	limit := a.MaxUploadBytes()
	cover, err := covers.Read(r, limit)
	switch {
	case errors.Is(err, covers.ErrEmpty):
		return UploadResult{}, errors.Validation("Nenhum arquivo enviado")
	case errors.Is(err, covers.ErrTooLarge):
		return UploadResult{}, errors.Validationf("Arquivo muito grande. Máximo %s", formatBytes(limit))
	case errors.Is(err, covers.ErrUnsupportedType):
		return UploadResult{}, errors.Validation("Tipo de arquivo não permitido. Use JPEG, PNG, WebP ou GIF")
	case err != nil:
		return UploadResult{}, errors.Wrap(err, errors.CodeInternal, "read upload")
	}

	key := cover.Key()
	url, err := a.objects.Put(ctx, key, bytes.NewReader(cover.Data), int64(len(cover.Data)), cover.ContentType)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, errors.CodeInternal, "Erro ao fazer upload do arquivo")
	}
	result := UploadResult{URL: url, Filename: key}
	if hash, err := cover.BlurHash(); err != nil {
		util.LoggerFromContext(ctx).Warn("cover blurhash failed", "key", key, "err", err)
	} else {
		result.BlurHash = hash
	}
	return result, nil
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
