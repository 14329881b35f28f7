package satchel

import "testing"

func TestNewS3BackendRequiresBucket(t *testing.T) {
	if _, err := NewS3Backend(S3BackendConfig{}); err == nil {
		t.Error("missing bucket should fail")
	}
}

func TestNewS3BackendDefaults(t *testing.T) {
	b, err := NewS3Backend(S3BackendConfig{
		Bucket:          "snapshots",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("NewS3Backend: %v", err)
	}
	defer b.Close()

	if b.config.Region != "us-east-1" {
		t.Errorf("Region default = %q, want us-east-1", b.config.Region)
	}
	if b.config.CacheSize != 64 {
		t.Errorf("CacheSize default = %d, want 64", b.config.CacheSize)
	}
	if b.config.MaxRetries != 3 {
		t.Errorf("MaxRetries default = %d, want 3", b.config.MaxRetries)
	}
}
