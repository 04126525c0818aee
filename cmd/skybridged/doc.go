// Command skybridged runs the local Bluesky bridge daemon. Browser
// clients talk to it over loopback HTTP and subscribe to session events
// over a websocket.
package main
