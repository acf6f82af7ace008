// Command castore is a thin operational CLI over internal/localstore: it
// exposes enough of the store's operations by hand (hash, dump, restore,
// add-path, gc-lock status) to exercise the library without a full
// client/server protocol.
package main

func main() {
	Execute()
}
