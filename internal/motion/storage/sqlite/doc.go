// Package sqlite persists analysis sessions: their metric snapshots, phase
// events, feedback and quality analyses. SessionStore implements
// pipeline.Sink so a live session can write through it frame by frame.
package sqlite
