/*
Package session hosts live dialogue sessions and coordinates access to their snapshots.

Manager serializes snapshot reads and writes per session ID, optionally across
replicas through a distributed locker. Hub owns the live sessions of a server:
one runner and one speech bridge per session.
*/
package session
