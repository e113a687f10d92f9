package logger

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		level    string
		encoding string
		wantErr  bool
	}{
		{"prod json", "prod", "info", "json", false},
		{"dev console", "dev", "debug", "console", false},
		{"bad level", "dev", "loud", "json", true},
		{"bad encoding", "dev", "info", "yaml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, err := New(tt.env, tt.level, tt.encoding, "retail-admin", "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if lg != nil {
				_ = lg.Sync()
			}
		})
	}
}
