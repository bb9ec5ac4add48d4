// Package core provides the business logic for bulk collaborator imports.
//
// This package contains all domain logic independent of any UI or transport
// layer. It is used by the web handlers, the command line tool and tests
// without modification.
//
// # Pipeline
//
// An import moves a single uploaded file through a fixed sequence of stages:
//
//  1. [Sniff] inspects text files and reports advisory warnings
//     (delimiter, byte order mark, non-ASCII bytes, ragged lines).
//  2. [Parse] turns CSV or XLSX bytes into ordered [RawRow] values, trying
//     the semicolon, comma and tab delimiters in that order.
//  3. [Normalize] maps heterogeneous headers onto the six canonical fields
//     through a fixed bilingual alias table.
//  4. [Validate] checks required fields and resolves company, department
//     and position names against the [References] loaded for the session.
//  5. Resolved rows are sent in one batch through a [RecordSubmitter] and
//     the per-record results are folded back with [Reconcile].
//  6. [AggregateDefects] feeds both report renderers ([WriteTextReport] and
//     [WriteWorkbookReport]).
//
// [Pipeline.Run] executes the stages synchronously. [Service] runs them in
// the background, broadcasts progress to subscribers and keeps finished
// sessions around until the operator closes them.
//
// # Row lifecycle
//
// Every data row becomes a [RowOutcome] whose status only ever moves
// forward:
//
//	pending -> resolved -> submitted -> success | serverError
//	pending -> validationError
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (size, format, empty, no data)
//   - REF001: Reference data could not be loaded
//   - IMP001-IMP004: Import session errors
//   - SUB001-SUB002: Batch submission errors
package core
