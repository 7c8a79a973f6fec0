package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/imagefile"
)

var (
	imageSizeMB int64
	imageLabel  string
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Create and inspect base disk images",
}

var imageCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a blank base image with a single FAT32 partition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := imagefile.CreateBaseImage(args[0], imageSizeMB, imageLabel); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[0])
		return nil
	},
}

var imageLsCmd = &cobra.Command{
	Use:   "ls <image>",
	Short: "List the root directory of an image's first partition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := imagefile.ListRoot(args[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	imageCreateCmd.Flags().Int64Var(&imageSizeMB, "size-mb", 64, "image size in megabytes")
	imageCreateCmd.Flags().StringVar(&imageLabel, "label", "UFGCARD", "FAT volume label")
	imageCmd.AddCommand(imageCreateCmd, imageLsCmd)
}
