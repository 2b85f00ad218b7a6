// Package repositories contains the backend adapters that persist key-ring
// documents in remote secret stores. Each adapter implements
// keyring.Repository plus Close, and follows the same failure policy:
// transport errors are logged and propagated with no partial results,
// malformed records are logged and skipped.
package repositories
