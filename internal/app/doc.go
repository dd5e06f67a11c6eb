// Package app wires the hub to the outside world: the upstream bridge, the
// periodic stats publisher and the gateway lifecycle that owns them.
package app
