package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shubhanshu02/ffmpeg-1/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
