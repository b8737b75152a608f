package main

import "remnantsync/cmd/remnantctl/commands"

func main() {
	commands.Execute()
}
