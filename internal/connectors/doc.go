// Package connectors provides sources that feed documents into the
// ingest pipeline from outside the CLI's explicit uploads.
package connectors
