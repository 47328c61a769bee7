// Command contactsctl runs contact imports and field queries against the
// configured store without going through the HTTP API.
package main

func main() {
	Execute()
}
