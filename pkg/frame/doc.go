// Package frame provides oriented reference frames attached to rigid bodies
// and the alignment routine that snaps one frame onto another by moving the
// body that owns it.
package frame
