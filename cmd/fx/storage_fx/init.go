package storage_fx

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/fx"

	"cicerone/internal/infra"
)

var Module = fx.Provide(provideObjectStorage)

func provideObjectStorage() (infra.ObjectStorage, error) {
	baseURL := os.Getenv("SUPABASE_URL")
	serviceKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if baseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	// Accept either the project root URL or the full storage endpoint.
	storageURL := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(storageURL, "/storage/v1") {
		storageURL += "/storage/v1"
	}

	bucket := getEnvWithDefault("STORAGE_BUCKET", "audio-guides")
	return infra.NewSupabaseStorage(storageURL, serviceKey, bucket), nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
