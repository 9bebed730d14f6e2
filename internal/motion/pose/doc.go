// Package pose owns the raw input of the analysis pipeline: the fixed
// 33-landmark full-body vocabulary, per-frame keypoints as delivered by the
// upstream pose detector, and readers for recorded frame streams.
//
// Types in this package are input-only. Nothing downstream mutates a
// PoseFrame; filtered positions live in the extractor.
package pose
