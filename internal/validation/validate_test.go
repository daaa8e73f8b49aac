package validation

import (
	"strings"
	"testing"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name      string
		bucket    string
		wantError bool
		errMsg    string
	}{
		// Valid bucket names
		{"valid_simple", "my-bucket", false, ""},
		{"valid_with_numbers", "my-bucket123", false, ""},
		{"valid_with_dots", "my.bucket", false, ""},
		{"valid_min_length", "abc", false, ""},
		{"valid_max_length", strings.Repeat("a", 63), false, ""},

		// Invalid bucket names
		{"empty", "", true, "bucket name cannot be empty"},
		{"too_short", "ab", true, "bucket name must be between 3 and 63 characters long"},
		{
			"too_long",
			strings.Repeat("a", 64),
			true,
			"bucket name must be between 3 and 63 characters long",
		},
		{
			"starts_with_hyphen",
			"-bucket",
			true,
			"bucket name cannot start or end with a hyphen or dot",
		},
		{
			"ends_with_dot",
			"bucket.",
			true,
			"bucket name cannot start or end with a hyphen or dot",
		},
		{
			"contains_uppercase",
			"MyBucket",
			true,
			"bucket name can only contain lowercase letters, numbers, dots, and hyphens",
		},
		{
			"contains_underscore",
			"my_bucket",
			true,
			"bucket name can only contain lowercase letters, numbers, dots, and hyphens",
		},
		{"ip_address", "192.168.1.1", true, "bucket name cannot be formatted as an IP address"},
		{
			"double_dots",
			"my..bucket",
			true,
			"bucket name cannot contain two adjacent periods or hyphens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.wantError {
				if err == nil {
					t.Errorf("ValidateBucketName(%q) expected error, got nil", tt.bucket)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ValidateBucketName(%q) error = %q, want to contain %q", tt.bucket, err.Error(), tt.errMsg)
				}
			} else {
				if err != nil {
					t.Errorf("ValidateBucketName(%q) expected no error, got %q", tt.bucket, err)
				}
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError bool
		errMsg    string
	}{
		// Valid storage paths
		{"valid_simple", "somefile", false, ""},
		{"valid_nested", "some/cool/path", false, ""},
		{"valid_unicode", "каталог/файл", false, ""},
		{"valid_spaces", "path with spaces", false, ""},
		{"valid_uploads", "uploads/ee160658-9444-4950-8ec6-30faab40529c/0", false, ""},

		// Invalid storage paths
		{"empty", "", true, "storage path cannot be empty"},
		{"traversal_dots", "some/../other", true, "path traversal"},
		{"traversal_leading", "../escape", true, "path traversal"},
		{"absolute", "/rooted/path", true, "path traversal"},
		{"too_long", strings.Repeat("a", 1025), true, "cannot exceed 1024"},
		{"control_chars", "bad\x00path", true, "control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantError {
				if err == nil {
					t.Errorf("ValidatePath(%q) expected error, got nil", tt.path)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ValidatePath(%q) error = %q, want to contain %q", tt.path, err.Error(), tt.errMsg)
				}
			} else {
				if err != nil {
					t.Errorf("ValidatePath(%q) expected no error, got %q", tt.path, err)
				}
			}
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	if err := ValidatePrefix(""); err != nil {
		t.Errorf("ValidatePrefix(\"\") expected no error, got %q", err)
	}
	if err := ValidatePrefix("uploads"); err != nil {
		t.Errorf("ValidatePrefix(\"uploads\") expected no error, got %q", err)
	}
	if err := ValidatePrefix("../up"); err == nil {
		t.Error("ValidatePrefix with traversal expected error, got nil")
	}
}

func TestValidateUploadID(t *testing.T) {
	tests := []struct {
		name      string
		uploadID  string
		wantError bool
	}{
		{"valid_uuid", "ee160658-9444-4950-8ec6-30faab40529c", false},
		{"valid_opaque", "some-opaque-token", false},
		{"empty", "", true},
		{"slash", "abc/def", true},
		{"backslash", "abc\\def", true},
		{"traversal", "..", true},
		{"control", "abc\ndef", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadID(tt.uploadID)
			if tt.wantError && err == nil {
				t.Errorf("ValidateUploadID(%q) expected error, got nil", tt.uploadID)
			}
			if !tt.wantError && err != nil {
				t.Errorf("ValidateUploadID(%q) expected no error, got %q", tt.uploadID, err)
			}
		})
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		wantError   bool
	}{
		{"empty_allowed", "", false},
		{"plain", "text/plain", false},
		{"with_params", "text/plain; charset=utf-8", false},
		{"vendor", "application/vnd.docker.distribution.manifest.v2+json", false},
		{"arbitrary", "Cool/Type", false},
		{"missing_subtype", "text", true},
		{"leading_slash", "/plain", true},
		{"garbage", "not a mime type", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContentType(tt.contentType)
			if tt.wantError && err == nil {
				t.Errorf("ValidateContentType(%q) expected error, got nil", tt.contentType)
			}
			if !tt.wantError && err != nil {
				t.Errorf("ValidateContentType(%q) expected no error, got %q", tt.contentType, err)
			}
		})
	}
}
