// Command gauntlet verifies features and runs change-scoped checks.
package main

func main() {
	Execute()
}
