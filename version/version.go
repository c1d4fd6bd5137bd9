package version

// SemVer is the semantic version of headerbft.
// It is overridden at build time with -ldflags.
var SemVer = "0.1.0"
