/*
Package session implements replay sessions over stored trace recordings.

A session is a recording plus its persisted cursor. The Manager serializes
every step of a recording with a reference-counted local lock and, across
replicas, an optional ports.DistributedLocker.
*/
package session
