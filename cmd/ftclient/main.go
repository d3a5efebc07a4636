package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/pkg/client"
)

const usage = "Usage: %s -<w|r|l> -a server_address -p port -f <local_path|remote_path> [-o <remote_path|local_path>]\n"

func main() {
	write := flag.Bool("w", false, "Upload -f (local) to -o (remote)")
	read := flag.Bool("r", false, "Download -f (remote) to -o (local)")
	list := flag.Bool("l", false, "List the remote directory -f")
	address := flag.String("a", "", "Server address")
	port := flag.Int("p", 0, "Server port")
	filePath := flag.String("f", "", "Local path for -w, remote path for -r and -l")
	otherPath := flag.String("o", "", "Remote path for -w, local path for -r")
	logLevel := flag.String("log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger.SetLevel(*logLevel)

	modes := 0
	for _, m := range []bool{*write, *read, *list} {
		if m {
			modes++
		}
	}
	if *address == "" || *port <= 0 || *filePath == "" || modes != 1 {
		fmt.Fprintln(os.Stderr, "Missing required arguments.")
		flag.Usage()
		os.Exit(1)
	}

	c, err := client.New(client.Config{Address: *address, Port: *port})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *write:
		remote := *otherPath
		if remote == "" {
			remote = filepath.Base(*filePath)
		}
		n, err := c.Write(ctx, *filePath, remote)
		exitOnError(err)
		logger.Info("Uploaded %d bytes to %s", n, remote)

	case *read:
		local := *otherPath
		if local == "" {
			local = *filePath
		}
		n, err := c.Read(ctx, *filePath, local)
		exitOnError(err)
		logger.Info("Downloaded %d bytes to %s", n, local)
		fmt.Println("File downloaded successfully!")

	case *list:
		names, err := c.List(ctx, *filePath)
		exitOnError(err)
		for _, name := range names {
			fmt.Println(name)
		}
	}
}

// exitOnError prints server errors the way the server phrased them.
func exitOnError(err error) {
	if err == nil {
		return
	}
	var remote *client.RemoteError
	if errors.As(err, &remote) {
		fmt.Printf("ERROR: %s\n", remote.Reason)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
