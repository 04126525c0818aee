// Package bridge routes client messages to the session and posting
// layers and wraps every outcome in a uniform response envelope.
package bridge
