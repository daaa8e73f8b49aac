// Package internal contains private implementation details for cloudstage.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - pool: Memory management optimizations
//   - s3api: The AWS SDK client surface the S3 driver consumes
//   - testutil: Fakes, mocks, and LocalStack test scaffolding
//   - validation: Input validation logic
package internal
