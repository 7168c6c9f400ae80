// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Normaliser: Extracts text and metadata from an uploaded file
//   - NormaliserRegistry: Selects the normaliser for a filename
//   - PostProcessor: Splits document text into chunks
//   - IndexRegistry: Per-user persistence of uploads and vector indexes
//   - DocumentStore: Document catalog persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, nothing is indexed.
//   - LanguageModel: Text completion. Without it, ask and review are disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
