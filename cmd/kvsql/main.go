// Package main contains the kvsql command-line entrypoint. It uses cobra
// for the command tree, following the shape of the teacher's own CLI
// (cmd/smf/main.go: a cobra root command plus flag-bearing subcommands).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kvsql/internal/config"
	"kvsql/internal/engine"
	"kvsql/internal/errs"
	"kvsql/internal/session"
)

// version is kvsql's own release marker, independent of the teacher's.
const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kvsql",
		Short: "Embeddable single-node SQL database engine",
	}
	rootCmd.AddCommand(runCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		dbPath  string
		memory  bool
		compact bool
		file    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interactive session or a script against the embedded engine",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := buildConfig(dbPath, memory, compact)
			if err != nil {
				return err
			}
			eng, err := engine.Open(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			sess := eng.NewSession()
			if file != "" {
				return runFile(sess, file)
			}
			return runRepl(sess)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the disk-backed data file")
	cmd.Flags().BoolVar(&memory, "memory", false, "Use an in-memory engine (default when --db is empty)")
	cmd.Flags().BoolVar(&compact, "compact", false, "Compact the data file immediately on open")
	cmd.Flags().StringVar(&file, "file", "", "Execute a `;`-separated SQL script instead of reading a REPL from stdin")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kvsql version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println("kvsql " + version)
			return nil
		},
	}
}

// buildConfig turns --db/--memory/--compact into a config.Config, favoring
// --memory (or the absence of --db) over a disk backend.
func buildConfig(dbPath string, memory, compact bool) (*config.Config, error) {
	if memory || dbPath == "" {
		return config.Default(), nil
	}
	cfg := &config.Config{Storage: config.StorageConfig{
		Backend:       "disk",
		Path:          dbPath,
		CompactOnOpen: compact,
	}}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runFile executes a `;`-separated script file one statement at a time.
func runFile(sess *session.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(string(data)) {
		rs, err := sess.Execute(stmt)
		if err != nil {
			printError(err)
			continue
		}
		fmt.Println(rs.String())
	}
	return nil
}

// runRepl reads SQL from stdin, accumulating lines until a terminating
// `;`, and executes one statement per accumulated buffer (spec.md §6.3:
// the core itself only ever sees one SQL string per call).
func runRepl(sess *session.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder

	fmt.Print("kvsql> ")
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')

		if !strings.HasSuffix(strings.TrimSpace(line), ";") {
			fmt.Print("    -> ")
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt != "" {
			rs, err := sess.Execute(stmt)
			if err != nil {
				printError(err)
			} else {
				fmt.Println(rs.String())
			}
		}
		fmt.Print("kvsql> ")
	}
	fmt.Println()
	return scanner.Err()
}

func splitStatements(script string) []string {
	var stmts []string
	var buf strings.Builder
	for _, r := range script {
		buf.WriteRune(r)
		if r == ';' {
			if s := strings.TrimSpace(buf.String()); s != "" {
				stmts = append(stmts, s)
			}
			buf.Reset()
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func printError(err error) {
	if e, ok := err.(*errs.Error); ok {
		fmt.Fprintln(os.Stderr, e.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
