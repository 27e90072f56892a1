// Package storage provides an optional, write-only audit trail of operator
// actions (sends, schedules, cancellations, responses, template edits).
//
// Nothing is ever read back: all runtime state stays in memory, the audit
// file is purely for after-the-fact inspection.
package storage
