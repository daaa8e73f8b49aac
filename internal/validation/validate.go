package validation

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/calyptra-io/cloudstage/errors"
)

// ValidatePath validates that a storage path is valid as (part of) an object
// key. This includes preventing path traversal attacks and ensuring valid
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewError("validatePath", errors.ErrInvalidInput).
			WithMessage("storage path cannot be empty")
	}

	// Check for path traversal attempts
	if hasPathTraversal(path) {
		return errors.NewError("validatePath", errors.ErrInvalidInput).
			WithPath(path).
			WithMessage("storage path cannot contain path traversal sequences")
	}

	// Validate path length (S3 supports keys up to 1024 bytes)
	if len(path) > 1024 {
		return errors.NewError("validatePath", errors.ErrInvalidInput).
			WithPath(path).
			WithMessage("storage path cannot exceed 1024 characters")
	}

	// S3 keys can contain any UTF-8 character but we should prevent
	// control characters
	if hasControlCharacters(path) {
		return errors.NewError("validatePath", errors.ErrInvalidInput).
			WithPath(path).
			WithMessage("storage path cannot contain control characters")
	}

	return nil
}

// ValidatePrefix validates a listing prefix. Unlike ValidatePath, an empty
// prefix is allowed: it means the whole root namespace.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return ValidatePath(prefix)
}

// ValidateUploadID validates an opaque upload identifier. Upload ids are
// embedded in staging object keys, so anything that could escape the
// upload's key namespace is rejected.
func ValidateUploadID(uploadID string) error {
	if uploadID == "" {
		return errors.NewError("validateUploadID", errors.ErrInvalidInput).
			WithMessage("upload id cannot be empty")
	}

	if strings.ContainsAny(uploadID, "/\\") || strings.Contains(uploadID, "..") {
		return errors.NewError("validateUploadID", errors.ErrInvalidInput).
			WithMessage("upload id cannot contain path separators or traversal sequences")
	}

	if hasControlCharacters(uploadID) {
		return errors.NewError("validateUploadID", errors.ErrInvalidInput).
			WithMessage("upload id cannot contain control characters")
	}

	return nil
}

// ValidateBucketName validates that a bucket name is DNS-compliant according
// to S3 rules. Returns an ErrInvalidInput-wrapped error if it is not.
func ValidateBucketName(bucket string) error {
	if err := validateBucketNameBasics(bucket); err != nil {
		return err
	}

	if err := validateBucketNameCharacters(bucket); err != nil {
		return err
	}

	return validateBucketNameStructure(bucket)
}

// ValidateContentType validates that a content type is a plausible MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil // Empty content type is allowed; it is detected or defaulted
	}

	mimePattern := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*\/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)
	if !mimePattern.MatchString(contentType) {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}

	return nil
}

// validateBucketNameBasics validates basic bucket name requirements
func validateBucketNameBasics(bucket string) error {
	if bucket == "" {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("bucket name cannot be empty")
	}

	// Bucket names must be between 3 and 63 characters long
	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("bucket name must be between 3 and 63 characters long")
	}

	return nil
}

// validateBucketNameCharacters validates allowed characters in bucket names
func validateBucketNameCharacters(bucket string) error {
	// Bucket names can consist only of lowercase letters, numbers, dots (.), and hyphens (-)
	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return errors.NewError("validateBucketName", errors.ErrInvalidInput).
				WithBucket(bucket).
				WithMessage("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	return nil
}

// validateBucketNameStructure validates bucket name structural requirements
func validateBucketNameStructure(bucket string) error {
	// Bucket names must not start or end with a hyphen or dot
	if bucket[0] == '-' || bucket[0] == '.' || bucket[len(bucket)-1] == '-' || bucket[len(bucket)-1] == '.' {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("bucket name cannot start or end with a hyphen or dot")
	}

	// Bucket names cannot be formatted as an IP address
	if isIPAddress(bucket) {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("bucket name cannot be formatted as an IP address")
	}

	// Bucket names cannot contain two adjacent periods or hyphens
	if hasAdjacentSpecialChars(bucket) {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("bucket name cannot contain two adjacent periods or hyphens")
	}

	return nil
}

// isValidBucketChar checks if a character is valid in a bucket name
func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// hasAdjacentSpecialChars checks for adjacent special characters
func hasAdjacentSpecialChars(bucket string) bool {
	for i := 0; i < len(bucket)-1; i++ {
		if (bucket[i] == '.' && bucket[i+1] == '.') || (bucket[i] == '-' && bucket[i+1] == '-') {
			return true
		}
	}
	return false
}

// isIPAddress checks if a string is formatted as an IP address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if len(part) == 0 {
			return true // Empty part indicates IP-like format (e.g., "192.168..1")
		}
		// Check if each part is a valid number 0-255
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}

// hasPathTraversal checks for path traversal attempts in storage paths
func hasPathTraversal(path string) bool {
	// Check for obvious traversal patterns
	if strings.Contains(path, "..") {
		return true
	}

	// Use filepath.Clean to normalize the path and check for traversal
	cleaned := filepath.Clean(path)

	// If the cleaned path starts with "..", it's a traversal attempt
	if strings.HasPrefix(cleaned, "..") {
		return true
	}

	// Check for absolute path attempts
	if strings.HasPrefix(cleaned, "/") {
		return true
	}

	// Check for Windows-style absolute paths
	if len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/') {
		return true
	}

	return false
}

// hasControlCharacters checks for control characters in a string
func hasControlCharacters(s string) bool {
	for _, char := range s {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
