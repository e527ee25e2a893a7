// Package pudl liberates public US energy data. Government agencies publish a
// wealth of data about the electricity system - who owns which plants, how much
// fuel they burn, what they generate hour by hour - but they publish it as
// spreadsheets, zipped CSV archives, and legacy FoxPro databases whose formats
// drift from year to year. This package and its subpackages pull that data
// out, clean it up, stitch the entities back together across agencies and
// years, and republish the result as relational and columnar tables.
//
// The pipeline has four stages, each behind its own interface:
//
// 1. Datastore
//
//	The workspace package downloads versioned raw archives from Zenodo and
//	caches them locally (and optionally in S3). Every dataset is identified by
//	a DOI and described by a datapackage.json whose resources carry md5
//	checksums and partition labels (year, state, ...), so the datastore can
//	fetch exactly the slices an ETL run needs and verify what it got.
//
// 2. Extraction
//
//	An extract.Extractor turns one dataset's raw files into a map of named
//	raw Tables, doing as little interpretation as possible. There is one
//	extractor per distribution format: Excel workbooks (EIA 860/923/861),
//	CSV-in-zip archives (EPA CEMS, FERC 714), and legacy databases - FoxPro
//	DBF for FERC Form 1 and SAS7BDAT for the datasets agencies still ship
//	that way. Format quirks (per-year column renames, header garbage) are
//	handled here so later stages see uniform column names.
//
// 3. Transformation
//
//	A transform.Transformer takes the raw tables for one source and returns
//	cleaned ones: sentinel values become real NAs, Y/N columns become bools,
//	reported-in-thousands columns get rescaled, timestamps move to UTC, and
//	obviously broken values (a 2 GW gas turbine) get corrected or nulled.
//	Transformers are pure table-to-table functions and compose with Chain.
//
// 4. Entity resolution and load
//
//	The glue package assigns stable PUDL-wide IDs to plants and utilities
//	that appear under different identifiers in different datasets, backed by
//	a persistent Registry so IDs survive across runs. Loaders then write the
//	final tables out: a SQLite database, a directory of Parquet files, or a
//	Kafka topic per table for downstream consumers.
//
// The ETL Runner in this package wires the stages together per dataset and
// runs them with bounded concurrency. The analysis package derives second
// order outputs (heat rates, capacity factors, marginal cost of electricity)
// from the cleaned tables.
package pudl
