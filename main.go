package main

import (
	"fmt"

	"github.com/riverpatch/uistream/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
