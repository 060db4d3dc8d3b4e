// Package main provides the livestack command line.
//
// Usage:
//
//	livestack run --config config.yaml
//	livestack run --scan ~/Pictures/scan --work ~/livestack
//
// Send SIGUSR1 to pause or resume the running session.
package main

func main() {
	Execute()
}
