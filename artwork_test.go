package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// generateNoiseImage fills an image with seeded random pixels so it does
// not compress well
func generateNoiseImage(width, height int) *image.RGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestDecodeArtworkData(t *testing.T) {
	rawData := encodePNG(t, generateTestImage(10, 10, color.RGBA{255, 0, 0, 255}))

	t.Run("raw bytes", func(t *testing.T) {
		img, err := decodeArtworkData(rawData)
		assertNoError(t, err)
		assertEqual(t, img.Bounds().Dx(), 10, "width")
	})

	t.Run("base64 encoded", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(rawData)
		img, err := decodeArtworkData([]byte(encoded))
		assertNoError(t, err)
		assertEqual(t, img.Bounds().Dy(), 10, "height")
	})

	t.Run("empty data", func(t *testing.T) {
		if _, err := decodeArtworkData([]byte{}); err == nil {
			t.Error("Expected error for empty data")
		}
	})

	t.Run("invalid data", func(t *testing.T) {
		if _, err := decodeArtworkData([]byte("not an image")); err == nil {
			t.Error("Expected error for invalid data")
		}
	})
}

func TestExtractDominantColor(t *testing.T) {
	t.Run("solid red", func(t *testing.T) {
		img := generateTestImage(100, 100, color.RGBA{255, 0, 0, 255})
		c, err := extractDominantColor(img)
		assertNoError(t, err)
		assertEqual(t, c, "#ff0000", "color")
	})

	t.Run("light blue", func(t *testing.T) {
		img := generateTestImage(5, 5, color.RGBA{128, 128, 255, 255})
		c, err := extractDominantColor(img)
		assertNoError(t, err)
		if !isValidHexColor(c) {
			t.Errorf("Invalid hex color format: %s", c)
		}
	})

	t.Run("vibrant color beats dull majority", func(t *testing.T) {
		img := generateTestImage(100, 100, color.RGBA{90, 90, 90, 255})
		for y := 0; y < 30; y++ {
			for x := 0; x < 30; x++ {
				img.Set(x, y, color.RGBA{0, 200, 255, 255})
			}
		}
		c, err := extractDominantColor(img)
		assertNoError(t, err)
		assertEqual(t, c, "#00c8ff", "color")
	})

	t.Run("grey falls back to clustering", func(t *testing.T) {
		img := generateTestImage(60, 60, color.RGBA{120, 120, 120, 255})
		c, err := extractDominantColor(img)
		if err == nil && !isValidHexColor(c) {
			t.Errorf("Invalid hex color format: %s", c)
		}
	})

	t.Run("nil image", func(t *testing.T) {
		if _, err := extractDominantColor(nil); err == nil {
			t.Error("Expected error for nil image")
		}
	})
}

func TestHSL(t *testing.T) {
	l, s := hsl(255, 0, 0)
	assertEqual(t, l, 0.5, "red lightness")
	assertEqual(t, s, 1.0, "red saturation")

	l, s = hsl(255, 255, 255)
	assertEqual(t, l, 1.0, "white lightness")
	assertEqual(t, s, 0.0, "white saturation")
}

func TestCropSquare(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		side          int
	}{
		{"landscape", 40, 20, 20},
		{"portrait", 12, 30, 12},
		{"already square", 16, 16, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := generateTestImage(tt.width, tt.height, color.RGBA{10, 20, 30, 255})
			sq, err := cropSquare(img)
			assertNoError(t, err)
			assertEqual(t, sq.Bounds().Dx(), tt.side, "width")
			assertEqual(t, sq.Bounds().Dy(), tt.side, "height")
		})
	}
}

func TestEncodeArtworkForKitty(t *testing.T) {
	t.Run("small image single chunk", func(t *testing.T) {
		img := generateTestImage(50, 50, color.RGBA{255, 0, 0, 255})
		encoded, err := encodeArtworkForKitty(img, 100, 10)
		assertNoError(t, err)

		if !strings.HasPrefix(encoded, "\033_Ga=d,d=I,i=42\033\\") {
			t.Error("expected the previous placement to be deleted first")
		}
		for _, want := range []string{"a=T", "f=100", "c=10", "m=0;"} {
			if !strings.Contains(encoded, want) {
				t.Errorf("encoded output missing %q", want)
			}
		}
	})

	t.Run("large image is chunked", func(t *testing.T) {
		encoded, err := encodeArtworkForKitty(generateNoiseImage(200, 200), 200, 13)
		assertNoError(t, err)

		if !strings.Contains(encoded, "m=1;") {
			t.Error("expected continuation chunks")
		}
		if !strings.HasSuffix(encoded, "\033\\") || !strings.Contains(encoded, "\033_Gm=0;") {
			t.Error("expected a final chunk with m=0")
		}
	})

	t.Run("nil image", func(t *testing.T) {
		if _, err := encodeArtworkForKitty(nil, 100, 10); err == nil {
			t.Error("Expected error for nil image")
		}
	})
}

func TestProcessArtwork(t *testing.T) {
	data := encodePNG(t, generateTestImage(80, 40, color.RGBA{255, 0, 0, 255}))

	t.Run("with color extraction", func(t *testing.T) {
		c, encoded, err := processArtwork(data, true, 64, 8)
		assertNoError(t, err)
		assertEqual(t, c, "#ff0000", "color")
		if encoded == "" {
			t.Error("expected encoded artwork")
		}
	})

	t.Run("without color extraction", func(t *testing.T) {
		c, encoded, err := processArtwork(data, false, 64, 8)
		assertNoError(t, err)
		assertEqual(t, c, "", "color")
		if encoded == "" {
			t.Error("expected encoded artwork")
		}
	})

	t.Run("invalid data", func(t *testing.T) {
		if _, _, err := processArtwork([]byte("garbage"), true, 64, 8); err == nil {
			t.Error("Expected error for invalid data")
		}
	})
}

func TestSupportsKittyGraphics(t *testing.T) {
	tests := []struct {
		term, termProgram string
		want              bool
	}{
		{"xterm-kitty", "", true},
		{"konsole-256color", "", true},
		{"xterm-256color", "ghostty", true},
		{"xterm-256color", "WezTerm", true},
		{"xterm-256color", "Apple_Terminal", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Setenv("TERM", tt.term)
		t.Setenv("TERM_PROGRAM", tt.termProgram)
		if got := supportsKittyGraphics(); got != tt.want {
			t.Errorf("TERM=%q TERM_PROGRAM=%q: got %v, want %v", tt.term, tt.termProgram, got, tt.want)
		}
	}
}

func TestLoadArtworkData(t *testing.T) {
	data := encodePNG(t, generateTestImage(8, 8, color.RGBA{0, 0, 255, 255}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("http", func(t *testing.T) {
		got, err := loadArtworkData(ctx, srv.URL+"/cover.png")
		assertNoError(t, err)
		if !bytes.Equal(got, data) {
			t.Error("downloaded bytes differ")
		}
	})

	t.Run("http not found", func(t *testing.T) {
		if _, err := loadArtworkData(ctx, srv.URL+"/missing.png"); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("file url", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cover.png")
		assertNoError(t, os.WriteFile(path, data, 0o644))

		got, err := loadArtworkData(ctx, "file://"+path)
		assertNoError(t, err)
		if !bytes.Equal(got, data) {
			t.Error("file bytes differ")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadArtworkData(ctx, filepath.Join(t.TempDir(), "nope.png")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestFetchArtworkCmd(t *testing.T) {
	cfg := validConfig()
	cfg.UI.ColorMode = "auto"

	if cmd := fetchArtworkCmd(Track{ID: 1}, cfg, true); cmd != nil {
		t.Error("expected no command for a track without cover")
	}

	path := filepath.Join(t.TempDir(), "cover.png")
	img := generateTestImage(32, 32, color.RGBA{255, 0, 0, 255})
	assertNoError(t, os.WriteFile(path, encodePNG(t, img), 0o644))

	track := Track{ID: 4, Title: "Song", AudioURL: "song.mp3", Cover: path}

	msg, ok := fetchArtworkCmd(track, cfg, true)().(artworkMsg)
	if !ok {
		t.Fatal("expected artworkMsg")
	}
	assertNoError(t, msg.err)
	assertEqual(t, msg.trackID, 4, "track id")
	assertEqual(t, msg.color, "#ff0000", "color")
	if msg.encoded == "" {
		t.Error("expected encoded artwork for a kitty terminal")
	}

	msg = fetchArtworkCmd(track, cfg, false)().(artworkMsg)
	assertEqual(t, msg.encoded, "", "encoded without kitty")
	assertEqual(t, msg.color, "#ff0000", "color without kitty")
}

func BenchmarkExtractDominantColor(b *testing.B) {
	img := generateNoiseImage(300, 300)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractDominantColor(img)
	}
}

func BenchmarkProcessArtwork(b *testing.B) {
	data := encodePNG(b, generateNoiseImage(300, 300))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		processArtwork(data, true, 300, 13)
	}
}
