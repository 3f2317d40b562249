// package services talks to the remote media service: session setup,
// profile management, and per-data-type collection adapters.
//
// Reads go through a retrying HTTP client; writes go through a bare
// client so the sync engine owns the retry policy for mutations.
package services
