// Package glue ties the datasets together. Agencies each have their own ID
// space for the same physical plants and utilities, so glue assigns every
// entity a persistent PUDL ID and emits the crosswalk tables that map agency
// IDs onto it.
package glue

// Registry is a persistent two way mapping between entity keys and PUDL IDs.
// IDs are allocated monotonically per category, and a key maps to the same ID
// on every run against the same backing store.
type Registry interface {
	// ID returns the PUDL ID for key in category, allocating one if the key
	// has never been seen.
	ID(category, key string) (uint64, error)

	// Key returns the key previously mapped to id in category.
	Key(category string, id uint64) (string, error)

	Close() error
}
