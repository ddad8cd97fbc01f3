// The main package for the webconsole executable.
package main

import (
	"github.com/JakeFAU/webconsole/cmd"
)

func main() {
	cmd.Execute()
}
