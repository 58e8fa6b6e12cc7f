package journal

// This file documents code generation for the journal package.
//
// To regenerate the reference schema from the migration files:
//   go generate ./internal/journal

//go:generate sh -c "cd ../.. && go run internal/journal/tools/generate_schema.go"
