// Usagemon tracks Claude usage against subscription limits and learns the
// real limits from logged throttle events.
//
// Usage:
//
//	# Show the current period (the default command)
//	usagemon status
//
//	# Count messages sent outside a tracked session
//	usagemon record 3
//
//	# Run the live monitor
//	usagemon live --interval 10s
package main

func main() {
	Execute()
}
