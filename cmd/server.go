package cmd

import (
	"musichelper/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MusicHelper服务器",
	Long:  `启动MusicHelper的HTTP服务器，提供上传、和弦分析与同步API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
