package main

import "github.com/example/laundry-storefront/cmd"

func main() {
	cmd.Execute()
}
