package types

import "time"

// GenerateImageResponse body of a successful POST /generate-image
type GenerateImageResponse struct {
	Message         string    `json:"message"`
	ImagePath       string    `json:"imagePath"`
	ImageURL        string    `json:"imageUrl"`
	ImageDisplayURL string    `json:"imageDisplayUrl"`
	DirectLink      string    `json:"directLink"`
	Meal            MealPlan  `json:"meal"`
	Attempts        int       `json:"attempts"`
	Composited      bool      `json:"composited"`
	Timestamp       time.Time `json:"timestamp"`
}

// ImageInfo one entry of GET /images
type ImageInfo struct {
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// ImageListResponse body of GET /images
type ImageListResponse struct {
	Count  int         `json:"count"`
	Images []ImageInfo `json:"images"`
}

// PingResponse body of GET /ping
type PingResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BannerResponse body of GET /
type BannerResponse struct {
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	Status      string   `json:"status"`
	Environment string   `json:"environment"`
	Endpoints   []string `json:"endpoints"`
}

// MemoryStats process memory in MiB
type MemoryStats struct {
	AllocMB     float64 `json:"allocMB"`
	SysMB       float64 `json:"sysMB"`
	HeapInUseMB float64 `json:"heapInUseMB"`
	Goroutines  int     `json:"goroutines"`
}

// HealthResponse body of GET /health
type HealthResponse struct {
	Status        string      `json:"status"`
	Timestamp     time.Time   `json:"timestamp"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds float64     `json:"uptimeSeconds"`
	Environment   string      `json:"environment"`
	Provider      string      `json:"provider"`
	Memory        MemoryStats `json:"memory"`
	LogoPath      string      `json:"logoPath"`
	LogoPresent   bool        `json:"logoPresent"`
	FontSource    string      `json:"fontSource"`
	OutputDir     string      `json:"outputDir"`
	StoredImages  int         `json:"storedImages"`
}
