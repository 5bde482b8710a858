//go:build linux

package cmd

import (
	"github.com/fonsecagoncalo/tincan/container"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <container-id>",
	Short: "Stop a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		logrus.WithField("id", id).Info("stopping container")
		return container.StopRun(id)
	},
}
