// Package auth owns the session lifecycle: authentication, token refresh,
// validation against the remote service, and the recovery chain
// (refresh, then stored-credential re-auth, then give up).
//
// The Manager is the single owner of the mutable session cell; every other
// component reads it through accessors. The Monitor drives periodic
// validation and recovery on its own timer, independent of user actions,
// and broadcasts auth-status changes to external collaborators.
package auth
