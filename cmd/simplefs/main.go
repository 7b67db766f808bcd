// Command simplefs manages simple file system disk images: creating and
// formatting them, dumping their structure, and manipulating files through
// an interactive shell.
package main

import (
	"fmt"
	"os"

	"github.com/dargueta/simplefs/disks"
	"github.com/dargueta/simplefs/drivers/common"
	"github.com/dargueta/simplefs/file_systems/simple"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.New()

func main() {
	app := cli.App{
		Name:  "simplefs",
		Usage: "Manage simple file system disk images",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(ctx *cli.Context) error {
			log.SetOutput(os.Stderr)
			if ctx.Bool("verbose") {
				log.SetLevel(logrus.DebugLevel)
			}
			simple.SetLogger(log)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "mkimage",
				Usage:     "Create a blank (unformatted) disk image file",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:  "blocks",
						Usage: "image size in 4 KiB blocks",
					},
					&cli.StringFlag{
						Name:  "profile",
						Usage: "use a predefined image profile (see list-profiles)",
					},
				},
				Action: makeImage,
			},
			{
				Name:   "list-profiles",
				Usage:  "List the predefined image profiles",
				Action: listProfiles,
			},
			{
				Name:      "format",
				Usage:     "Write a fresh, empty file system onto an image",
				ArgsUsage: "IMAGE",
				Action:    withImage(formatImage),
			},
			{
				Name:      "debug",
				Usage:     "Dump the superblock and every valid inode",
				ArgsUsage: "IMAGE",
				Action:    withImage(debugImage),
			},
			{
				Name:      "stat",
				Usage:     "Print volume statistics",
				ArgsUsage: "IMAGE",
				Action:    withImage(statImage),
			},
			{
				Name:      "check",
				Usage:     "Verify the structural consistency of an image",
				ArgsUsage: "IMAGE",
				Action:    withImage(checkImage),
			},
			{
				Name:      "shell",
				Usage:     "Open an interactive shell on an image",
				ArgsUsage: "IMAGE",
				Action:    withImage(runShellCommand),
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func makeImage(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	if path == "" {
		return fmt.Errorf("missing image path")
	}

	totalBlocks := ctx.Uint("blocks")
	if slug := ctx.String("profile"); slug != "" {
		profile, err := disks.GetImageProfile(slug)
		if err != nil {
			return err
		}
		totalBlocks = profile.TotalBlocks
	}
	if totalBlocks < 2 {
		return fmt.Errorf("image must be at least 2 blocks; pass --blocks or --profile")
	}

	handle, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer handle.Close()

	err = handle.Truncate(int64(totalBlocks) * 4096)
	if err != nil {
		return err
	}

	log.Debugf("created blank image %s with %d blocks", path, totalBlocks)
	return nil
}

func listProfiles(ctx *cli.Context) error {
	for _, profile := range disks.ListImageProfiles() {
		fmt.Printf(
			"%-16s %8d blocks  %s (%s)\n",
			profile.Slug,
			profile.TotalBlocks,
			profile.Name,
			profile.Notes,
		)
	}
	return nil
}

// withImage opens the image named by the first positional argument and hands
// the device to the wrapped action, closing the file afterwards.
func withImage(
	action func(ctx *cli.Context, device *common.SectorDevice) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		path := ctx.Args().Get(0)
		if path == "" {
			return fmt.Errorf("missing image path")
		}

		handle, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return err
		}
		defer handle.Close()

		device, err := common.NewDeviceFromStream(handle)
		if err != nil {
			return err
		}
		return action(ctx, device)
	}
}

func formatImage(ctx *cli.Context, device *common.SectorDevice) error {
	return simple.NewDriver(device).Format()
}

func debugImage(ctx *cli.Context, device *common.SectorDevice) error {
	return simple.NewDriver(device).Debug(os.Stdout)
}

func statImage(ctx *cli.Context, device *common.SectorDevice) error {
	driver := simple.NewDriver(device)
	err := driver.Mount()
	if err != nil {
		return err
	}
	defer driver.Unmount()

	stat, err := driver.FSStat()
	if err != nil {
		return err
	}

	fmt.Printf("volume:       %s\n", stat.Label)
	fmt.Printf("block size:   %d bytes\n", stat.BlockSize)
	fmt.Printf("blocks:       %d total, %d free\n", stat.TotalBlocks, stat.BlocksFree)
	fmt.Printf("inode blocks: %d\n", stat.InodeBlocks)
	fmt.Printf("inodes:       %d in use, %d free\n", stat.Files, stat.FilesFree)
	return nil
}

func checkImage(ctx *cli.Context, device *common.SectorDevice) error {
	driver := simple.NewDriver(device)
	err := driver.Mount()
	if err != nil {
		return err
	}
	defer driver.Unmount()

	err = driver.Check()
	if err != nil {
		return err
	}
	fmt.Println("image is consistent.")
	return nil
}

func runShellCommand(ctx *cli.Context, device *common.SectorDevice) error {
	return runShell(device, os.Stdin, os.Stdout)
}
