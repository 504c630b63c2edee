// Command doccode serves a local form that generates sequential document
// codes.
package main

import "github.com/sarchlab/doccode/cmd"

func main() {
	cmd.Execute()
}
