// Package fakes provides hand-written SDK fakes for the store backends.
// Each fake implements the narrow client interface its repository
// depends on and records the requests it receives.
package fakes
