// Package gae provides Google Cloud Datastore implementations of the signon
// store interfaces. Datastore is a document store, so lookups beyond the key
// (email, provider id) run as property-filter queries; TakeToken uses a
// Datastore transaction to keep redemption single-use.
package gae
