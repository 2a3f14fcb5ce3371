// Package agent defines the capability contract shared by every
// conversational handler: the state passed in, the result produced, and
// the closed set of concrete agents implementing it.
package agent
