// Package server assembles the bridge daemon's HTTP surface and wires
// its components together.
package server
