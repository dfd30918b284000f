package main

import (
	"context"

	"showtimes/cmd/showtimes/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
