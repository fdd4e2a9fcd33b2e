// The main package for the harvester executable.
package main

import (
	"github.com/ashh-m/ytkeywordsearchtool/cmd"
)

func main() {
	cmd.Execute()
}
