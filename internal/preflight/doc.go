// Package preflight provides readiness checks for the analyzer, its
// recognizer resources, and the filesystem paths mouthsync depends on.
//
// These checks run in two contexts:
//   - The run command calls CheckInputs before launching the analyzer so a
//     missing sound file is rejected before any process starts.
//   - The CLI "mouthsync status" command uses RunAll and the individual
//     check functions to display readiness.
package preflight
