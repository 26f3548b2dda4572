// Package session mirrors connection state into Redis so that any server
// instance (and operational tooling) can see which wallet holds which
// connection, which channel it last joined, and when it was last active.
// Redis is a mirror of the in-process presence registry, not the source of
// truth; entries expire on their own if a server dies without cleaning up.
package session
