// Command resscene runs the ResScene daemon and manages stored scenes.
package main

func main() {
	Execute()
}
