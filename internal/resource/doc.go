// Package resource is the healthcare resource repository sitting on top
// of internal/txn. It owns resource validation, the structured outcome
// error shape returned to callers, and the document-store persistence of
// FHIR-like resources, all driven through txn.WithTransaction.
package resource
