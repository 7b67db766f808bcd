package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dargueta/simplefs/drivers/common"
	"github.com/dargueta/simplefs/file_systems/simple"
)

const shellHelp = `commands are:
    format
    mount
    unmount
    debug
    stat
    check
    create
    delete  <inode>
    getsize <inode>
    cat     <inode>
    copyin  <file> <inode>
    copyout <inode> <file>
    help
    quit
`

// runShell drives one interactive session against an image. Commands mirror
// the classic simplefs shell; failures print a message and keep the session
// alive rather than aborting it.
func runShell(device *common.SectorDevice, in io.Reader, out io.Writer) error {
	driver := simple.NewDriver(device)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "simplefs> ")
		if !scanner.Scan() {
			break
		}

		words := strings.Fields(scanner.Text())
		if len(words) == 0 {
			continue
		}

		if words[0] == "quit" || words[0] == "exit" {
			break
		}
		runShellCommandLine(driver, words, out)
	}

	stat := device.Stat()
	fmt.Fprintf(out, "%d disk block reads\n", stat.Reads)
	fmt.Fprintf(out, "%d disk block writes\n", stat.Writes)
	return scanner.Err()
}

func runShellCommandLine(driver *simple.Driver, words []string, out io.Writer) {
	switch words[0] {
	case "help":
		fmt.Fprint(out, shellHelp)

	case "format":
		if err := driver.Format(); err != nil {
			fmt.Fprintf(out, "format failed: %s\n", err.Error())
		} else {
			fmt.Fprintln(out, "disk formatted.")
		}

	case "mount":
		if err := driver.Mount(); err != nil {
			fmt.Fprintf(out, "mount failed: %s\n", err.Error())
		} else {
			fmt.Fprintln(out, "disk mounted.")
		}

	case "unmount":
		if err := driver.Unmount(); err != nil {
			fmt.Fprintf(out, "unmount failed: %s\n", err.Error())
		} else {
			fmt.Fprintln(out, "disk unmounted.")
		}

	case "debug":
		if err := driver.Debug(out); err != nil {
			fmt.Fprintf(out, "debug failed: %s\n", err.Error())
		}

	case "stat":
		stat, err := driver.FSStat()
		if err != nil {
			fmt.Fprintf(out, "stat failed: %s\n", err.Error())
			return
		}
		fmt.Fprintf(out, "volume %s: %d/%d blocks free, %d files\n",
			stat.Label, stat.BlocksFree, stat.TotalBlocks, stat.Files)

	case "check":
		if err := driver.Check(); err != nil {
			fmt.Fprintf(out, "check failed:\n%s\n", err.Error())
		} else {
			fmt.Fprintln(out, "image is consistent.")
		}

	case "create":
		inumber, err := driver.Create()
		if err != nil {
			fmt.Fprintf(out, "create failed: %s\n", err.Error())
		} else {
			fmt.Fprintf(out, "created inode %d\n", inumber)
		}

	case "delete":
		inumber, ok := parseInumber(words, 1, out)
		if !ok {
			return
		}
		if err := driver.Delete(inumber); err != nil {
			fmt.Fprintf(out, "delete failed: %s\n", err.Error())
		} else {
			fmt.Fprintf(out, "inode %d deleted.\n", inumber)
		}

	case "getsize":
		inumber, ok := parseInumber(words, 1, out)
		if !ok {
			return
		}
		size, err := driver.GetSize(inumber)
		if err != nil {
			fmt.Fprintf(out, "getsize failed: %s\n", err.Error())
		} else {
			fmt.Fprintf(out, "inode %d has size %d\n", inumber, size)
		}

	case "cat":
		inumber, ok := parseInumber(words, 1, out)
		if !ok {
			return
		}
		if err := copyOut(driver, inumber, out); err != nil {
			fmt.Fprintf(out, "cat failed: %s\n", err.Error())
		}

	case "copyin":
		if len(words) != 3 {
			fmt.Fprintln(out, "use: copyin <file> <inode>")
			return
		}
		inumber, ok := parseInumber(words, 2, out)
		if !ok {
			return
		}
		if err := copyIn(driver, words[1], inumber, out); err != nil {
			fmt.Fprintf(out, "copyin failed: %s\n", err.Error())
		}

	case "copyout":
		if len(words) != 3 {
			fmt.Fprintln(out, "use: copyout <inode> <file>")
			return
		}
		inumber, ok := parseInumber(words, 1, out)
		if !ok {
			return
		}
		handle, err := os.Create(words[2])
		if err != nil {
			fmt.Fprintf(out, "copyout failed: %s\n", err.Error())
			return
		}
		defer handle.Close()
		if err := copyOut(driver, inumber, handle); err != nil {
			fmt.Fprintf(out, "copyout failed: %s\n", err.Error())
		}

	default:
		fmt.Fprintf(out, "unknown command: %s\n", words[0])
		fmt.Fprintln(out, "type 'help' for a list of commands.")
	}
}

func parseInumber(words []string, argIndex int, out io.Writer) (simple.Inumber, bool) {
	if argIndex >= len(words) {
		fmt.Fprintf(out, "use: %s <inode>\n", words[0])
		return 0, false
	}
	value, err := strconv.Atoi(words[argIndex])
	if err != nil || value < 1 {
		fmt.Fprintf(out, "invalid inode number: %q\n", words[argIndex])
		return 0, false
	}
	return simple.Inumber(value), true
}

// copyIn replaces the contents of an inode with the contents of a host file.
// Copying always starts at offset 0, so the previous contents are released
// first. If the image fills up or the file exceeds the maximum file size,
// whatever fit stays and the copy reports how far it got.
func copyIn(driver *simple.Driver, path string, inumber simple.Inumber, out io.Writer) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := driver.Open(inumber)
	if err != nil {
		return err
	}
	defer target.Close()

	// An empty source never reaches target.Write, so truncate explicitly.
	_, err = driver.WriteAt(inumber, nil, 0)
	if err != nil {
		return err
	}

	copied, err := io.Copy(target, source)
	if err != nil {
		fmt.Fprintf(out, "%d bytes copied (truncated: %s)\n", copied, err.Error())
		return nil
	}
	fmt.Fprintf(out, "%d bytes copied\n", copied)
	return nil
}

// copyOut streams an inode's contents to a writer.
func copyOut(driver *simple.Driver, inumber simple.Inumber, target io.Writer) error {
	source, err := driver.Open(inumber)
	if err != nil {
		return err
	}
	defer source.Close()

	_, err = io.Copy(target, source)
	return err
}
