// Package deps checks the external tools mouthsync shells out to and prepares
// the analyzer executable for launch.
package deps
