package arbor

// Version is the library version, stamped here until releases move it to
// build-time injection.
const Version = "0.1.0"
