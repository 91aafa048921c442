package version

// Version is the release version reported by /health.
const Version = "0.3.0"
