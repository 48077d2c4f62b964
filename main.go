package main

import "github.com/williamokano/backup_receiver/cmd"

func main() {
	cmd.Execute()
}
