// Command crimeapp registers citizens, watches a camera for Wanted faces and
// serves the web API.
package main

func main() {
	Execute()
}
