package main

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Set at build time via go build -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "gateway",
	Short:   "An OpenAI-compatible Responses API gateway over heterogeneous chat providers",
	Version: version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configValidateCmd)
}

func resolvedGitCommit() string {
	if gitCommit != "unknown" {
		return gitCommit
	}
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func buildInfo() string {
	bt := buildTime
	if bt == "unknown" {
		bt = time.Now().Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("open-responses-gateway v%s\nCommit: %s\nBuild Time: %s", version, resolvedGitCommit(), bt)
}
