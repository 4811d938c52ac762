package main

import "github.com/knpwrs/tsm3u/cmd"

// main is the entry point for the tsm3u CLI application.
//
// This application fetches the channel catalog and authorization token documents
// and writes an IPTV playlist with clearkey DRM properties.
func main() {
	cmd.Execute()
}
