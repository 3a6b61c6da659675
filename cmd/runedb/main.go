// Package main provides the RuneDB CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/runedb/pkg/config"
	"github.com/orneryd/runedb/pkg/runedb"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runedb",
		Short: "RuneDB - Embedded Graph Database with Cypher Queries",
		Long: `RuneDB is a content-addressed graph database written in Go,
queried with a Cypher-compatible language.

Features:
  • Cypher query language (MATCH, CREATE, SET, DELETE, aggregation)
  • Content-addressed block storage with full version history
  • Write-ahead log with crash recovery
  • Four isolation levels (read_committed through serializable)
  • Declared indexes and schema constraints`,
	}

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("RuneDB v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Init command
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new RuneDB database",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(initCmd)

	// Query command (one-shot)
	queryCmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Execute a single Cypher query",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().String("data-dir", getEnvStr("RUNEDB_DATA_DIR", "./data"), "Data directory")
	queryCmd.Flags().String("params", "", "Query parameters as JSON (e.g. '{\"name\": \"Odin\"}')")
	queryCmd.Flags().Bool("json", false, "Emit results as JSON instead of a table")
	rootCmd.AddCommand(queryCmd)

	// Shell command (interactive Cypher REPL)
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive Cypher shell",
		RunE:  runShell,
	}
	shellCmd.Flags().String("data-dir", getEnvStr("RUNEDB_DATA_DIR", "./data"), "Data directory")
	rootCmd.AddCommand(shellCmd)

	// Export command
	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().String("data-dir", getEnvStr("RUNEDB_DATA_DIR", "./data"), "Data directory")
	rootCmd.AddCommand(exportCmd)

	// Import command
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON graph export",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().String("data-dir", getEnvStr("RUNEDB_DATA_DIR", "./data"), "Data directory")
	rootCmd.AddCommand(importCmd)

	// Stats command
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().String("data-dir", getEnvStr("RUNEDB_DATA_DIR", "./data"), "Data directory")
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB loads config (file, env, then the --data-dir flag on top) and
// opens the database.
func openDB(cmd *cobra.Command) (*runedb.DB, error) {
	cfg, err := config.LoadFromFile(config.FindConfigFile())
	if err != nil {
		return nil, err
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if cmd.Flags().Changed("data-dir") {
		cfg.Database.DataDir = dataDir
	}
	return runedb.Open(cfg.Database.DataDir, cfg)
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("📂 Initializing RuneDB database in %s\n", dataDir)

	for _, dir := range []string{dataDir, filepath.Join(dataDir, "blocks"), filepath.Join(dataDir, "wal")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dataDir, "runedb.yaml")
	configContent := `# RuneDB Configuration
database:
  data_dir: ` + dataDir + `
  isolation: read_committed   # read_committed | repeatable_read | serializable | snapshot
  tx_timeout: 30s
  wal_sync_mode: immediate    # immediate | batch | none
  wal_sync_interval: 100ms

query:
  timeout: 60s
  max_rows: 0                 # 0 = unlimited

logging:
  level: INFO
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("✅ Database initialized successfully")
	fmt.Printf("   Config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Open a shell:  runedb shell --data-dir", dataDir)
	fmt.Println("  2. Load data:     runedb import graph.json --data-dir", dataDir)

	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	params := map[string]any{}
	if raw, _ := cmd.Flags().GetString("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Errorf("parsing --params: %w", err)
		}
	}

	result, err := db.ExecuteQuery(context.Background(), args[0], params)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"columns": result.Columns, "rows": result.Rows})
	}
	printResult(result)
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("📂 Opening database at %s...\n", dataDir)
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to RuneDB")
	fmt.Println("Type 'exit' or Ctrl+D to quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("runedb> ")
		if !scanner.Scan() {
			break // EOF or error
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		start := time.Now()
		result, err := db.ExecuteQuery(ctx, query, nil)
		if err != nil {
			fmt.Printf("❌ Error: %v\n", err)
			continue
		}

		if len(result.Columns) > 0 {
			printResult(result)
			fmt.Printf("\n(%d row(s) in %v)\n", len(result.Rows), time.Since(start).Round(time.Millisecond))
		} else {
			fmt.Printf("✅ Query executed in %v\n", time.Since(start).Round(time.Millisecond))
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println("👋 Goodbye!")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[0], err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := db.WriteExport(ctx, f); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("✅ Exported %d nodes, %d relationships to %s\n", stats.Nodes, stats.Edges, args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	fmt.Printf("📥 Importing data from %s\n", args[0])
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	if err := db.ReadExport(ctx, f); err != nil {
		return fmt.Errorf("loading export: %w", err)
	}

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("✅ Loaded %d nodes, %d relationships in %v\n", stats.Nodes, stats.Edges, time.Since(start))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	labels, err := db.Labels()
	if err != nil {
		return err
	}
	types, err := db.RelationshipTypes()
	if err != nil {
		return err
	}

	fmt.Println("📊 Database statistics")
	fmt.Printf("   Nodes:              %d\n", stats.Nodes)
	fmt.Printf("   Relationships:      %d\n", stats.Edges)
	fmt.Printf("   Labels:             %s\n", joinOrNone(labels))
	fmt.Printf("   Relationship types: %s\n", joinOrNone(types))
	return nil
}

// printResult renders a result as an aligned text table.
func printResult(result *runedb.Result) {
	if len(result.Columns) == 0 {
		return
	}
	widths := make([]int, len(result.Columns))
	for i, c := range result.Columns {
		widths[i] = len(c)
	}
	rendered := make([][]string, len(result.Rows))
	for r, row := range result.Rows {
		rendered[r] = make([]string, len(row))
		for i, v := range row {
			rendered[r][i] = formatValue(v)
			if len(rendered[r][i]) > widths[i] {
				widths[i] = len(rendered[r][i])
			}
		}
	}

	var header strings.Builder
	for i, c := range result.Columns {
		if i > 0 {
			header.WriteString(" | ")
		}
		header.WriteString(pad(c, widths[i]))
	}
	fmt.Println(header.String())
	fmt.Println(strings.Repeat("-", header.Len()))
	for _, row := range rendered {
		var line strings.Builder
		for i, v := range row {
			if i > 0 {
				line.WriteString(" | ")
			}
			line.WriteString(pad(v, widths[i]))
		}
		fmt.Println(line.String())
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func getEnvStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
