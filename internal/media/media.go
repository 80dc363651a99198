// Package media adapts the host's audio and display devices to the live
// pipeline interfaces: Microphone is an AudioSource, Speaker is an
// AudioSink, and ScreenSource is a FrameSource.
package media
