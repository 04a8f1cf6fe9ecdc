/*
Package deckmon provides tooling to keep slide decks in sync.

Decks are decomposed into slides, each slide is stored once under the
blake2b fingerprint of its canonical content, and deck compositions are
versioned manifests of fingerprints. Synchronization against a cloud
object store transfers only the blobs the other side misses and publishes
the manifest with a conditional write, so concurrent edits surface as
conflicts instead of overwrites.

See cmd/deckmon for the command line interface and pkg/engine for the
synchronization engine.
*/
package deckmon
