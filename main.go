package main

import "github.com/reelview/hlsget/cmd"

func main() {
	cmd.Execute()
}
