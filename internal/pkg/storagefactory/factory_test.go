package storagefactory

import (
	"context"
	"testing"

	"opentry/internal/config"
)

func TestNewStorage_Local(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		cfg      *config.StorageConfig
		wantErr  bool
		wantType string
	}{
		{
			name: "valid local storage config",
			cfg: &config.StorageConfig{
				Type: "local",
				Local: &config.LocalConfig{
					BasePath: tmpDir,
					BaseURL:  "http://localhost:8080/media/",
				},
			},
			wantType: "local",
		},
		{
			name:    "missing local config",
			cfg:     &config.StorageConfig{Type: "local"},
			wantErr: true,
		},
		{
			name:    "missing oss config",
			cfg:     &config.StorageConfig{Type: "oss"},
			wantErr: true,
		},
		{
			name:    "unsupported type",
			cfg:     &config.StorageConfig{Type: "s3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := NewStorage(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := st.GetStorageType(); got != tt.wantType {
				t.Errorf("GetStorageType() = %s, want %s", got, tt.wantType)
			}
		})
	}
}
