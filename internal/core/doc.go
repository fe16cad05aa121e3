// Package core provides the business logic for importing question bank CSV
// exports into a record store.
//
// The package is independent of any transport: the CLI, the HTTP trigger
// server and the tests all drive the same [Importer].
//
// # Pipeline
//
// Every file goes through the same steps, one file at a time:
//
//  1. Read through [WrapForStreaming] (BOM skipping, UTF-8 sanitizing)
//  2. [Parse] into [RawRecord] values keyed by normalized header names
//  3. [Mapper.Map] into fixed-schema [OutputRecord] values
//  4. Drop records without body content ([OutputRecord.HasBody])
//  5. [BatchWriter.Write] upserts batches of [DefaultBatchSize] records
//
// A failing batch is recorded as a [Failure] and the next batch still runs.
// Only a missing source ([ErrSourceNotFound]) or an empty one ([ErrNoFiles])
// stops a run.
//
// # Field Mapping
//
// Output fields are filled from the first non-empty column of an alias list:
//
//	category        category, exam_part   ("1" → Part 1, "2" → Part 2, else Additional)
//	id              id                    (synthesized when empty)
//	body_primary    question, question_text
//	body_secondary  options
//	topic           topic, section        (default General)
//	notes           explanation, rationale
//	tags            tags
//
// The lists form a [Policy]; [LoadPolicy] overlays a YAML file on them.
//
// # Error Handling
//
// Technical errors are mapped to stable codes with [MapError]:
//
//   - DB001-DB009: store errors (constraints, connectivity, credentials)
//   - IMP001-IMP009: import errors (source, file size, concurrency, unreadable files)
//   - ERR000: anything else
package core
