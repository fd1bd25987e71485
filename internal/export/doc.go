// Package export writes a rig's recorded action to formats other tools read.
//
// The dope sheet is a JSON listing of every fcurve with its keyframes, plus the
// scene timing and the cue steps that produced them. The glTF exporter turns
// bone fcurves into a node animation with STEP interpolation so each mouth
// shape holds until the next key, matching constant keys in a dope sheet.
package export
