// Package security builds the engine's security posture report.
package security
