package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/cache"
)

// httpCacheDir is the download cache below the cache root. Everything
// else under the root holds rendered artifacts.
const httpCacheDir = "http"

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the artifact and download cache",
	}
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cacheInfoCommand())
	cmd.AddCommand(c.cachePathCommand())
	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var downloads bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached maps and downloaded inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			if downloads {
				dir = filepath.Join(dir, httpCacheDir)
			}

			usage, err := cacheUsage(dir)
			if err != nil {
				return err
			}
			if usage.entries == 0 {
				printInfo("Cache is empty")
				return nil
			}

			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return err
			}
			if err := fc.Clear(); err != nil {
				return fmt.Errorf("clear %s: %w", dir, err)
			}
			printSuccess("Cleared %s cached entries", printer.Sprintf("%d", usage.entries))
			printDetail("Directory: %s", dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&downloads, "downloads", false, "only clear downloaded inputs")
	return cmd
}

func (c *CLI) cacheInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache entry counts and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			all, err := cacheUsage(dir)
			if err != nil {
				return err
			}
			http, err := cacheUsage(filepath.Join(dir, httpCacheDir))
			if err != nil {
				return err
			}
			artifacts := usage{entries: all.entries - http.entries, bytes: all.bytes - http.bytes}

			printKeyValue("Artifacts", artifacts.String())
			printKeyValue("Downloads", http.String())
			printKeyValue("Directory", dir)
			return nil
		},
	}
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

type usage struct {
	entries int
	bytes   int64
}

func (u usage) String() string {
	return printer.Sprintf("%d entries, %.1f MB", u.entries, float64(u.bytes)/(1<<20))
}

// cacheUsage counts the files below dir. A missing dir is empty.
func cacheUsage(dir string) (usage, error) {
	var u usage
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		u.entries++
		u.bytes += info.Size()
		return nil
	})
	return u, err
}
