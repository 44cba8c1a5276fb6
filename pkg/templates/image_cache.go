package templates

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// ImageCache loads template PNGs once and hands out the decoded RGBA image
type ImageCache struct {
	images map[string]*image.RGBA
	mu     sync.RWMutex
	stats  CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits   int64 // Served from memory
	Misses int64 // Had to read from disk
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.RGBA),
	}
}

// Get returns the decoded image at path, reading it on first use
func (ic *ImageCache) Get(path string) (*image.RGBA, error) {
	ic.mu.RLock()
	img, ok := ic.images[path]
	ic.mu.RUnlock()
	if ok {
		ic.mu.Lock()
		ic.stats.Hits++
		ic.mu.Unlock()
		return img, nil
	}

	img, err := LoadPNG(path)
	if err != nil {
		return nil, err
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.images[path] = img
	ic.stats.Misses++
	return img, nil
}

// Stats returns cache statistics
func (ic *ImageCache) Stats() CacheStats {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.stats
}

// LoadPNG decodes a PNG file into an RGBA image anchored at the origin
func LoadPNG(path string) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", path, err)
	}

	return ToRGBA(img), nil
}

// ToRGBA converts any image to RGBA with bounds starting at (0,0)
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// SavePNG writes an image to path, creating parent directories as needed
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return file.Close()
}
