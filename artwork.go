package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/bubbletea"
	"github.com/nfnt/resize"
	"github.com/oliamb/cutter"
	_ "golang.org/x/image/webp"
)

// kittyImageID is the fixed id of the single cover image on screen
const kittyImageID = 42

// deleteAllImages removes every Kitty image placement
const deleteAllImages = "\033_Ga=d,d=A\033\\"

// artworkMsg carries a processed cover for the track with trackID
type artworkMsg struct {
	trackID int
	encoded string
	color   string
	err     error
}

// loadArtworkData reads a cover from a local path (bare or file://) or an http(s) URL
func loadArtworkData(ctx context.Context, locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build artwork request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download artwork: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("artwork download failed with status: %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	data, err := os.ReadFile(strings.TrimPrefix(locator, "file://"))
	if err != nil {
		return nil, fmt.Errorf("failed to read artwork file: %w", err)
	}
	return data, nil
}

// decodeArtworkData decodes base64-encoded or raw image data into an image.Image
func decodeArtworkData(imgData []byte) (image.Image, error) {
	imageData := imgData
	if decoded, err := base64.StdEncoding.DecodeString(string(imgData)); err == nil {
		imageData = decoded
	}

	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// cropSquare cuts the largest centered square out of img
func cropSquare(img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() == b.Dy() {
		return img, nil
	}
	return cutter.Crop(img, cutter.Config{
		Width:   1,
		Height:  1,
		Mode:    cutter.Centered,
		Options: cutter.Ratio,
	})
}

// hsl returns lightness and saturation of an 8-bit RGB color
func hsl(r, g, b uint8) (lightness, saturation float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	hi := max(rf, gf, bf)
	lo := min(rf, gf, bf)

	lightness = (hi + lo) / 2
	if hi == lo {
		return lightness, 0
	}
	if lightness > 0.5 {
		return lightness, (hi - lo) / (2 - hi - lo)
	}
	return lightness, (hi - lo) / (hi + lo)
}

// extractDominantColor picks a vibrant, light color from img as a hex string,
// suitable as an accent on dark terminals
func extractDominantColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	// sample every 5th pixel in both directions
	const step = 5
	counts := make(map[uint32]int)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			counts[(r>>8)<<16|(g>>8)<<8|b>>8]++
		}
	}

	type candidate struct {
		rgb   uint32
		score float64
	}
	var candidates []candidate
	for rgb, count := range counts {
		l, s := hsl(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))
		if l < 0.3 || l > 0.85 || s < 0.25 {
			continue
		}
		ls := l
		if l > 0.7 {
			ls = 1.4 - l
		}
		candidates = append(candidates, candidate{
			rgb:   rgb,
			score: s*2.5 + ls*1.5 + float64(count)/1000,
		})
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable colors found")
		}
		c := colors[0].Color
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rgb < candidates[j].rgb
	})
	best := candidates[0].rgb
	return fmt.Sprintf("#%02x%02x%02x", uint8(best>>16), uint8(best>>8), uint8(best)), nil
}

// Check if terminal supports Kitty graphics protocol
func supportsKittyGraphics() bool {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}
	return termProgram == "ghostty" || termProgram == "WezTerm"
}

// encodeArtworkForKitty renders img as a Kitty graphics escape sequence,
// widthPixels wide and placed across widthColumns terminal cells
func encodeArtworkForKitty(img image.Image, widthPixels, widthColumns int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	resized := resize.Resize(uint(widthPixels), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	// payloads are chunked at 4096 bytes; m=1 marks more to come
	const chunkSize = 4096
	var out strings.Builder
	fmt.Fprintf(&out, "\033_Ga=d,d=I,i=%d\033\\", kittyImageID)

	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		more := 0
		if end < len(encoded) {
			more = 1
		}
		if i == 0 {
			fmt.Fprintf(&out, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=%d;%s\033\\",
				kittyImageID, widthColumns, more, encoded[i:end])
		} else {
			fmt.Fprintf(&out, "\033_Gm=%d;%s\033\\", more, encoded[i:end])
		}
	}

	return out.String(), nil
}

// processArtwork decodes a cover once and returns the accent color (when
// requested) and the Kitty-encoded image
func processArtwork(data []byte, extractColor bool, widthPixels, widthColumns int) (color string, encoded string, err error) {
	img, err := decodeArtworkData(data)
	if err != nil {
		return "", "", err
	}

	if extractColor {
		if c, err := extractDominantColor(img); err == nil {
			color = c
		}
	}

	square, err := cropSquare(img)
	if err != nil {
		square = img
	}
	encoded, err = encodeArtworkForKitty(square, widthPixels, widthColumns)
	if err != nil {
		return color, "", err
	}
	return color, encoded, nil
}

// fetchArtworkCmd loads and processes t's cover in the background
func fetchArtworkCmd(t Track, cfg Config, supportsKitty bool) tea.Cmd {
	if t.Cover == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data, err := loadArtworkData(ctx, t.Cover)
		if err != nil {
			return artworkMsg{trackID: t.ID, err: err}
		}

		msg := artworkMsg{trackID: t.ID}
		func() {
			defer func() {
				if r := recover(); r != nil {
					msg.err = fmt.Errorf("artwork processing panicked: %v", r)
				}
			}()
			color, encoded, err := processArtwork(data, cfg.UI.ColorMode == "auto",
				cfg.Artwork.WidthPixels, cfg.Artwork.WidthColumns)
			msg.color, msg.err = color, err
			if supportsKitty {
				msg.encoded = encoded
			}
		}()
		return msg
	}
}
