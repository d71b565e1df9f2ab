// Command mediaops runs video operations and the tool-calling chat demo.
package main

import "github.com/maauso/mediaops/internal/cli"

func main() {
	cli.Main()
}
