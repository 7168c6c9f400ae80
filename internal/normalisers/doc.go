// Package normalisers provides implementations of the Normaliser interface
// for the supported upload formats. Each normaliser knows how to extract
// text content from one family of file extensions.
//
// Normalisers are registered with the Registry at startup.
package normalisers
