package colloquy

// Version is the release of this module, reported by the CLI and the HTTP health endpoint.
const Version = "0.1.0"
