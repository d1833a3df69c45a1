package main

import (
	"github.com/databacker/mysql-binlog-restore/cmd"
)

func main() {
	cmd.Execute()
}
