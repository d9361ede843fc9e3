// Package main 提供 lanpeer 命令行入口
package main

import (
	"errors"
	"fmt"
	"os"

	lanpeer "github.com/dep2p/go-lanpeer"
	"github.com/dep2p/go-lanpeer/internal/core/instance"
)

func main() {
	err := newRootCmd().Execute()
	instance.RunExitHooks()

	if errors.Is(err, lanpeer.ErrInstanceRunning) {
		fmt.Fprintln(os.Stderr, "another instance is already running")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
