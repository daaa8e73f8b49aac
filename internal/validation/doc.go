// Package validation provides centralized input validation logic.
// This includes storage path validation, upload id validation, bucket name
// validation, and security checks.
//
// All user inputs are validated before being sent to the backend to prevent
// injection attacks and ensure compliance with S3 key requirements.
package validation
