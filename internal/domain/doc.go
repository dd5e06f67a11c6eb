// Package domain defines the core gateway types and contracts.
//
// This package contains concept-oriented files (channel.go, role.go, envelope.go, events.go, errors.go)
// with the closed role/channel enumerations, the channel authorization table, wire envelopes and the
// upstream event contract. No I/O here - just types and pure lookups.
package domain
