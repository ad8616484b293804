package main

import "olx-scraper/cmd"

func main() {
	cmd.Execute()
}
