// Package git serves fixture repositories over the smart HTTP protocol so
// code under test can clone from and push to them like a real remote.
package git
