package types

// Version is the canonical project version.
// The CLI and the field frame format share this version.
const Version = "0.3.0"

// FrameVersion is the field frame format version written by frame.Encoder.
// It must equal Version.
const FrameVersion = Version
