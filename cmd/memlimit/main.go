// Command memlimit runs WebAssembly guests under a memory budget.
package main

func main() {
	Execute()
}
