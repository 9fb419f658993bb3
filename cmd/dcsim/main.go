// Command dcsim runs direct-charging sessions against the plant model in
// virtual time and prints the trace.
package main

func main() {
	Execute()
}
