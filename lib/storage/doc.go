// Package storage dispatches requests against a blob store and normalizes their outcomes,
// the counterpart of package database for binary objects.
//
// A successful request yields a StorageResponse, which holds exactly one of the object's
// content, a download URL or its metadata. Failures are *database.NoraError values.
//
// Two blob stores are provided: memblob keeps objects in memory, gcsblob stores them in a
// Google Cloud Storage bucket (the buckets behind Firebase Storage).
package storage
