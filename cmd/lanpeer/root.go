package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lanpeer "github.com/dep2p/go-lanpeer"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lanpeer",
		Short: "局域网节点发现与消息",
		Long: `lanpeer 在本地网络上通过 mDNS 发布并发现同类实例，
为每个发现的节点维护 TCP 连接，并提供广播 JSON 消息的本地 HTTP 接口。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), lanpeer.VersionInfo())
		},
	}
}
