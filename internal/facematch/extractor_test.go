package facematch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sidecar(t *testing.T, faces int, length int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil || len(body) == 0 {
			http.Error(w, "empty", http.StatusBadRequest)
			return
		}
		type face struct {
			Embedding []float64 `json:"embedding"`
		}
		resp := struct {
			Faces []face `json:"faces"`
		}{Faces: []face{}}
		for i := 0; i < faces; i++ {
			resp.Faces = append(resp.Faces, face{Embedding: make([]float64, length)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPExtractor(t *testing.T) {
	photo := []byte("\xff\xd8\xff\xe0 fake jpeg")

	t.Run("returns the single signature", func(t *testing.T) {
		srv := sidecar(t, 1, SignatureLength)
		defer srv.Close()

		sig, err := NewHTTPExtractor(srv.URL, time.Second, nil).Extract(context.Background(), photo)
		require.NoError(t, err)
		require.Len(t, sig, SignatureLength)
	})

	t.Run("no face", func(t *testing.T) {
		srv := sidecar(t, 0, SignatureLength)
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, time.Second, nil).Extract(context.Background(), photo)
		require.ErrorIs(t, err, ErrNoFaceDetected)
	})

	t.Run("multiple faces are rejected", func(t *testing.T) {
		srv := sidecar(t, 2, SignatureLength)
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, time.Second, nil).Extract(context.Background(), photo)
		require.ErrorIs(t, err, ErrMultipleFaces)
	})

	t.Run("wrong embedding length", func(t *testing.T) {
		srv := sidecar(t, 1, 64)
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, time.Second, nil).Extract(context.Background(), photo)
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrNoFaceDetected))
	})

	t.Run("empty photo never reaches the sidecar", func(t *testing.T) {
		_, err := NewHTTPExtractor("http://127.0.0.1:0", time.Second, nil).Extract(context.Background(), nil)
		require.ErrorIs(t, err, ErrEmptyPhoto)
	})

	t.Run("sidecar failure is reported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, time.Second, nil).Extract(context.Background(), photo)
		require.ErrorContains(t, err, "503")
	})
}
