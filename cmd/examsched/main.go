// Command examsched runs the exam reservation API, its notification
// worker and a few administrative helpers.
package main

func main() {
	Execute()
}
