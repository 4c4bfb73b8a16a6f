package main

import "github.com/frahmantamala/timetrack-payroll/cmd"

func main() {
	cmd.Execute()
}
