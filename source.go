package pudl

// Source is implemented by readers of raw data files. Each Record returned
// from Record is described by the slice of Fields returned from Source.Schema
// directly after the call to Source.Record. If the error returned from
// Source.Record is nil, then the call to Schema which applied to the previous
// Record also applies to this Record. Source implementations are fundamentally
// not threadsafe (due to the interplay between Record and Schema).
type Source interface {

	// Record returns a data record, and an optional error. If the error is
	// ErrSchemaChange, then the record is valid, but one should call
	// Source.Schema to understand how each of its fields should be
	// interpreted.
	Record() (Record, error)

	// Schema returns a slice of Fields which applies to the most recent
	// Record returned from Source.Record. Spreadsheet-era government data
	// changes shape between report years, so schema changes mid-Source are
	// routine rather than exceptional.
	Schema() []Field
}

type Error string

func (e Error) Error() string { return string(e) }

// ErrSchemaChange is returned from Source.Record when the returned record has
// a different schema from the previous record (or is the first one
// delivered). Call Source.Schema to fetch the schema in order to properly
// decode this record.
const ErrSchemaChange = Error("this record has a different schema from the previous record")

type Record interface {
	// Commit notifies the Source which produced this record that it and any
	// record which came before it have been completely processed.
	Commit() error

	Data() []interface{}
}
