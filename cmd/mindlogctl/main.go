// Command mindlogctl runs maintenance tasks against the mindlog database.
package main

func main() {
	Execute()
}
