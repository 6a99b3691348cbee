// Command udpqueue runs a pacing pool against a destination with synthetic
// Opus streams, for load testing and for checking a deployment's egress.
package main

func main() {
	Execute()
}
