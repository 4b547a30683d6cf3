package service

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vieuxgrimoire/grimoire-server/internal/auth"
	"github.com/vieuxgrimoire/grimoire-server/internal/media/images"
	"github.com/vieuxgrimoire/grimoire-server/internal/store"
	"github.com/vieuxgrimoire/grimoire-server/internal/validation"
)

const testTokenKey = "0000000000000000000000000000000000000000000000000000000000000000"

const testPublicURL = "http://localhost:4000"

// testEnv wires a full service stack against temp directories.
type testEnv struct {
	store  *store.Store
	covers *images.Storage
	auth   *AuthService
	books  *BookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	storage, err := images.NewStorage(t.TempDir())
	require.NoError(t, err)
	processor := images.NewProcessor(storage, logger)

	tokens, err := auth.NewTokenService(testTokenKey, time.Hour)
	require.NoError(t, err)

	v := validation.New()

	return &testEnv{
		store:  s,
		covers: storage,
		auth:   NewAuthService(s, tokens, v, logger),
		books:  NewBookService(s, processor, v, logger, testPublicURL),
	}
}

// testCover encodes a small valid JPEG for upload tests.
func testCover(t *testing.T) CoverUpload {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := range 60 {
		for x := range 40 {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 4), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return CoverUpload{Data: buf.Bytes(), Mime: "image/jpeg"}
}
