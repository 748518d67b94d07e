// Package speech provides SpeechProvider implementations that stand in for a
// cloud speech service: Console emulates one on a terminal and Bridge relays
// directives to a remote client over HTTP or MCP.
package speech
