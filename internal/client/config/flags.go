package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-d string   local SQLite database path
//	-m string   MongoDB URI
//	-n string   MongoDB database
//	-w string   change source (mongo, redis)
//	-s string   object store (s3, cloudinary)
//	-l string   log level
//
// Only these flags are taken from os.Args, via flagx.FilterArgs, so other
// layers can own the rest of the command line.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-m", "-n", "-w", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.LocalDBPath, "d", cfg.LocalDBPath, "local database path")
	fs.StringVar(&cfg.MongoURI, "m", cfg.MongoURI, "MongoDB connection URI")
	fs.StringVar(&cfg.MongoDatabase, "n", cfg.MongoDatabase, "MongoDB database name")
	fs.StringVar(&cfg.ChangeSource, "w", cfg.ChangeSource, "change source: mongo or redis")
	fs.StringVar(&cfg.ObjectStore, "s", cfg.ObjectStore, "object store: s3 or cloudinary")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
